// Package suite starts a disposable Redis container for the round and event
// repository tests and hands them a connection opened through
// storage.NewRedisStorage, the same path the serve command takes.
package suite

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/kinarow/internal/repository/storage"
)

const (
	containerTTL = 120
	startTimeout = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"
)

// Suite carries the per-test Redis connection. Round snapshots and the event
// channel of one test never leak into another: each test gets its own
// container and an empty database.
type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage *redis.Client
}

func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("test", t.Name())

	pool, resource := startRedis(t)

	var redisStorage *storage.RedisStorage
	err := pool.Retry(func() error {
		var connErr error
		redisStorage, connErr = storage.NewRedisStorage(ctx, logger, resource.GetHostPort(redisPort))
		return connErr
	})
	if err != nil {
		purge(t, pool, resource)
		t.Fatalf("redis never became ready: %v", err)
	}

	if err = redisStorage.Connection.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush round storage: %v", err)
	}

	t.Cleanup(func() {
		_ = redisStorage.Close()
		purge(t, pool, resource)
	})

	return ctx, &Suite{
		T:       t,
		Logger:  logger,
		Storage: redisStorage.Connection,
	}
}

// Subscribe listens on channel and returns once Redis has confirmed the
// subscription, so nothing published afterwards is missed.
func (that *Suite) Subscribe(ctx context.Context, channel string) <-chan *redis.Message {
	that.Helper()

	pubsub := that.Storage.Subscribe(ctx, channel)
	that.Cleanup(func() {
		_ = pubsub.Close()
	})

	if _, err := pubsub.Receive(ctx); err != nil {
		that.Fatalf("could not subscribe to %s: %v", channel, err)
	}

	return pubsub.Channel()
}

func startRedis(t *testing.T) (*dockertest.Pool, *dockertest.Resource) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}
	pool.MaxWait = startTimeout

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start redis: %v", err)
	}

	// docker hard-kills the container even if cleanup never runs
	_ = resource.Expire(containerTTL)

	return pool, resource
}

func purge(t *testing.T, pool *dockertest.Pool, resource *dockertest.Resource) {
	t.Helper()

	if err := pool.Purge(resource); err != nil {
		t.Errorf("could not purge redis container: %v", err)
	}
}
