package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curesync/curesync/internal/config"
	"github.com/curesync/curesync/internal/domain/billing"
	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/platform/auth"
	"github.com/curesync/curesync/internal/platform/cache"
	"github.com/curesync/curesync/internal/platform/db"
	"github.com/curesync/curesync/internal/platform/events"
	"github.com/curesync/curesync/internal/platform/middleware"
	"github.com/curesync/curesync/internal/platform/telemetry"
	"github.com/curesync/curesync/migrations"
)

const version = "0.1.0"

// serializableRetries bounds how often a booking transaction is retried after
// a serialization failure before the caller sees a conflict.
const serializableRetries = 3

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curesync-server",
		Short: "CureSync appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()

	// Tracing
	tp, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "curesync",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()
	metrics := telemetry.NewMetrics("curesync")

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Slot cache
	slotCache, err := cache.New(ctx, cache.Config{
		Backend:  cfg.SlotCache,
		Size:     cfg.SlotCacheSize,
		TTL:      cfg.SlotCacheTTL,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init slot cache")
	}
	if closer, ok := slotCache.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info().Str("backend", cfg.SlotCache).Dur("ttl", cfg.SlotCacheTTL).Msg("slot cache ready")

	healthChecks := []db.Check{{Name: "slot_cache", Fn: slotCache.Ping}}

	// Events
	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to event broker")
		}
		defer amqpPub.Close()
		publisher = amqpPub
		healthChecks = append(healthChecks, db.Check{Name: "event_broker", Fn: amqpPub.Ping})
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events")
	}

	taxRate, err := billing.ParseTaxRate(cfg.InvoiceTaxRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid INVOICE_TAX_RATE")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.TracingMiddleware())
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("64K"))

	e.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
			Logger:     logger,
		}))
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, healthChecks...))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	registerDomains(apiV1, pool, domainOptions{
		logger:    logger,
		cache:     slotCache,
		publisher: publisher,
		metrics:   metrics,
		location:  loc,
		taxRate:   taxRate,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openPool loads config and connects for one-shot commands.
// rateLimitConfig starts from the middleware defaults so unset values
// never disable idle bucket eviction.
func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	if cfg.RateLimitIdle > 0 {
		rl.IdleTTL = cfg.RateLimitIdle
	}
	return rl
}

func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationFiles returns the embedded migrations unless the --dir flag or
// MIGRATIONS_DIR points elsewhere. The flag wins.
func migrationFiles(flagDir, cfgDir string) fs.FS {
	switch {
	case flagDir != "":
		return os.DirFS(flagDir)
	case cfgDir != "":
		return os.DirFS(cfgDir)
	default:
		return migrations.FS
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(dir, cfg.MigrationsDir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(dir, cfg.MigrationsDir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print a doctor's available slots for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, _ := cmd.Flags().GetString("doctor")
			date, _ := cmd.Flags().GetString("date")

			doctorID, err := uuid.Parse(doctor)
			if err != nil {
				return fmt.Errorf("--doctor must be a UUID: %w", err)
			}
			if _, err := booking.ParseDate(date); err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			svcs := newServices(pool, domainOptions{
				logger:   zerolog.Nop(),
				location: loc,
			})
			slots, err := svcs.booking.GetAvailableSlots(ctx, doctorID, date)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), slots)
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func printSlots(w io.Writer, slots []booking.Slot) error {
	if len(slots) == 0 {
		_, err := fmt.Fprintln(w, "No available slots.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tHOSPITAL\tFEE\tSCHEDULE")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Time, s.HospitalName, s.ConsultationFee.StringFixed(2), s.ScheduleID)
	}
	return tw.Flush()
}
