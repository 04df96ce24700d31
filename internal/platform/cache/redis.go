package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing generation key reads as 0.
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// Redis shares cached slot lists between replicas.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client without pinging it.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, doctorID uuid.UUID, date string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key(doctorID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

func (r *Redis) Version(ctx context.Context, doctorID uuid.UUID) (uint64, error) {
	v, err := r.client.Get(ctx, generationKey(doctorID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return v, nil
}

// Set stores payload only while the doctor is still at version. The
// comparison and the write run atomically on the server.
func (r *Redis) Set(ctx context.Context, doctorID uuid.UUID, date string, payload []byte, version uint64) error {
	keys := []string{generationKey(doctorID), key(doctorID, date)}
	args := []any{strconv.FormatUint(version, 10), payload, r.ttl.Milliseconds()}
	if err := setIfGeneration.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, doctorID uuid.UUID, date string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(doctorID))
		pipe.Del(ctx, key(doctorID, date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// InvalidateDoctor deletes every cached date of a doctor. SCAN keeps the
// server responsive on large keyspaces.
func (r *Redis) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if err := r.client.Incr(ctx, generationKey(doctorID)).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	iter := r.client.Scan(ctx, 0, doctorPrefix(doctorID)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
