package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check is a named dependency check reported by the health endpoint, e.g. the
// slot cache or the event broker.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// RunChecks executes every check and returns the failures by name.
func RunChecks(ctx context.Context, checks []Check) map[string]string {
	failures := make(map[string]string)
	for _, chk := range checks {
		if err := chk.Fn(ctx); err != nil {
			failures[chk.Name] = err.Error()
		}
	}
	return failures
}

// HealthHandler pings the database plus any extra checks. It answers 503 when
// any of them fail.
func HealthHandler(pool *pgxpool.Pool, extra ...Check) echo.HandlerFunc {
	checks := append([]Check{{Name: "database", Fn: pool.Ping}}, extra...)
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		failures := RunChecks(ctx, checks)
		body := map[string]interface{}{
			"status": "healthy",
			"pool":   GetPoolStats(pool),
		}
		if len(failures) > 0 {
			body["status"] = "unhealthy"
			body["errors"] = failures
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
