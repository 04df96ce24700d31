package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/curesync/curesync/internal/domain/billing"
	"github.com/curesync/curesync/internal/domain/booking"
	"github.com/curesync/curesync/internal/domain/directory"
	"github.com/curesync/curesync/internal/domain/review"
	"github.com/curesync/curesync/internal/platform/cache"
	"github.com/curesync/curesync/internal/platform/db"
	"github.com/curesync/curesync/internal/platform/events"
	"github.com/curesync/curesync/internal/platform/telemetry"
)

type domainOptions struct {
	logger    zerolog.Logger
	cache     cache.SlotCache
	publisher events.Publisher
	metrics   *telemetry.Metrics
	location  *time.Location
	taxRate   decimal.Decimal
}

type services struct {
	directory *directory.Service
	booking   *booking.Service
	billing   *billing.Service
	review    *review.Service
}

func newServices(pool *pgxpool.Pool, opts domainOptions) *services {
	if opts.cache == nil {
		opts.cache = cache.Noop{}
	}
	if opts.publisher == nil {
		opts.publisher = events.Noop{}
	}
	if opts.location == nil {
		opts.location = time.UTC
	}

	dirSvc := directory.NewService(directory.NewUserRepoPG(pool), opts.logger)

	tx := db.NewSerializableRunner(pool, serializableRetries).OnRetry(opts.metrics.ObserveTxRetry)
	bookingSvc := booking.NewService(
		booking.NewScheduleRepoPG(pool),
		booking.NewAppointmentRepoPG(pool),
		dirSvc,
		tx,
		opts.logger,
		booking.WithSlotCache(opts.cache),
		booking.WithPublisher(opts.publisher),
		booking.WithMetrics(opts.metrics),
		booking.WithLocation(opts.location),
	)

	return &services{
		directory: dirSvc,
		booking:   bookingSvc,
		billing:   billing.NewService(bookingSvc, dirSvc, opts.taxRate, opts.logger),
		review:    review.NewService(review.NewRepoPG(pool), bookingSvc, dirSvc, opts.logger),
	}
}

// registerDomains mounts every domain handler on the API group.
func registerDomains(api *echo.Group, pool *pgxpool.Pool, opts domainOptions) *services {
	svcs := newServices(pool, opts)

	directory.NewHandler(svcs.directory).RegisterRoutes(api)
	booking.NewHandler(svcs.booking).RegisterRoutes(api)
	billing.NewHandler(svcs.billing).RegisterRoutes(api)
	review.NewHandler(svcs.review).RegisterRoutes(api)
	return svcs
}
