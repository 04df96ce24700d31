package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string        `mapstructure:"MIGRATIONS_DIR"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitIdle   time.Duration `mapstructure:"RATE_LIMIT_IDLE_TTL"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	SlotCache       string        `mapstructure:"SLOT_CACHE_BACKEND"`
	SlotCacheSize   int           `mapstructure:"SLOT_CACHE_SIZE"`
	SlotCacheTTL    time.Duration `mapstructure:"SLOT_CACHE_TTL"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	AMQPURL         string        `mapstructure:"AMQP_URL"`
	AMQPExchange    string        `mapstructure:"AMQP_EXCHANGE"`
	TracingEnabled  bool          `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint    string        `mapstructure:"OTLP_ENDPOINT"`
	TraceSampleRate float64       `mapstructure:"TRACE_SAMPLE_RATE"`
	InvoiceTaxRate  string        `mapstructure:"INVOICE_TAX_RATE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_IDLE_TTL", "REQUEST_TIMEOUT", "TIMEZONE",
	"SLOT_CACHE_BACKEND", "SLOT_CACHE_SIZE", "SLOT_CACHE_TTL", "REDIS_URL",
	"AMQP_URL", "AMQP_EXCHANGE",
	"TRACING_ENABLED", "OTLP_ENDPOINT", "TRACE_SAMPLE_RATE",
	"INVOICE_TAX_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("RATE_LIMIT_IDLE_TTL", "10m")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("SLOT_CACHE_BACKEND", "memory")
	v.SetDefault("SLOT_CACHE_SIZE", 4096)
	v.SetDefault("SLOT_CACHE_TTL", "30s")
	v.SetDefault("AMQP_EXCHANGE", "curesync.events")
	v.SetDefault("TRACE_SAMPLE_RATE", 0.1)
	v.SetDefault("INVOICE_TAX_RATE", "0")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in development mode; requests without a token get admin access")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE. Appointment dates and times are wall-clock values
// in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.SlotCache {
	case "none", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SLOT_CACHE_BACKEND is \"redis\"")
		}
	default:
		return fmt.Errorf("SLOT_CACHE_BACKEND must be \"none\", \"memory\", or \"redis\", got %q", c.SlotCache)
	}
	if c.SlotCache == "memory" && c.SlotCacheSize <= 0 {
		return fmt.Errorf("SLOT_CACHE_SIZE must be positive, got %d", c.SlotCacheSize)
	}
	if c.TracingEnabled && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP_ENDPOINT is required when TRACING_ENABLED is true")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1, got %v", c.TraceSampleRate)
	}
	return nil
}
