package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 5
	connectDelay    = 200 * time.Millisecond
)

type RedisStorage struct {
	Connection *redis.Client
}

// NewRedisStorage connects to addr, retrying the initial ping with backoff
// so the arbiter can start alongside a Redis that is still booting.
func NewRedisStorage(ctx context.Context, logger *slog.Logger, addr string) (*RedisStorage, error) {
	log := logger.With("component", "redis_storage")

	conn := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	err := retry.Do(
		func() error {
			return conn.Ping(ctx).Err()
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Warn("redis is not ready, retrying", "addr", addr, "attempt", n+1, "error", err)
			return retry.BackOffDelay(n, err, config)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{Connection: conn}, nil
}

func (that *RedisStorage) Close() error {
	return that.Connection.Close()
}
