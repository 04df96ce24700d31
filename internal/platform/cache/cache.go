// Package cache stores computed available-slot lists keyed by doctor and date.
// Values are opaque encoded payloads; callers own the encoding.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotCache is implemented by Memory, Redis and Noop.
//
// Every doctor carries a generation that Invalidate and InvalidateDoctor
// advance. Readers take the generation with Version before they compute a
// slot list and hand it to Set, which drops the write when an invalidation
// happened in between.
type SlotCache interface {
	Get(ctx context.Context, doctorID uuid.UUID, date string) ([]byte, bool, error)
	Version(ctx context.Context, doctorID uuid.UUID) (uint64, error)
	Set(ctx context.Context, doctorID uuid.UUID, date string, payload []byte, version uint64) error
	Invalidate(ctx context.Context, doctorID uuid.UUID, date string) error
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
	Ping(ctx context.Context) error
}

type Config struct {
	Backend  string
	Size     int
	TTL      time.Duration
	RedisURL string
}

// New builds the cache selected by cfg.Backend ("none", "memory" or "redis").
func New(ctx context.Context, cfg Config) (SlotCache, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown slot cache backend %q", cfg.Backend)
	}
}

func key(doctorID uuid.UUID, date string) string {
	return doctorPrefix(doctorID) + date
}

func doctorPrefix(doctorID uuid.UUID) string {
	return "slots:" + doctorID.String() + ":"
}

func generationKey(doctorID uuid.UUID) string {
	return "slotgen:" + doctorID.String()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Version(context.Context, uuid.UUID) (uint64, error) { return 0, nil }
func (Noop) Set(context.Context, uuid.UUID, string, []byte, uint64) error { return nil }
func (Noop) Invalidate(context.Context, uuid.UUID, string) error { return nil }
func (Noop) InvalidateDoctor(context.Context, uuid.UUID) error { return nil }
func (Noop) Ping(context.Context) error { return nil }
