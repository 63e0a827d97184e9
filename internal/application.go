package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/kinarow/internal/config"
	"github.com/rocketscienceinc/kinarow/internal/entity"
	"github.com/rocketscienceinc/kinarow/internal/metrics"
	"github.com/rocketscienceinc/kinarow/internal/repository"
	"github.com/rocketscienceinc/kinarow/internal/repository/storage"
	"github.com/rocketscienceinc/kinarow/internal/service"
	"github.com/rocketscienceinc/kinarow/internal/usecase"
	"github.com/rocketscienceinc/kinarow/transport/rest"
	"github.com/rocketscienceinc/kinarow/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// App holds the controller and the sinks its events fan out to.
type App struct {
	logger *slog.Logger

	Controller *usecase.GameController
	Notifier   *service.Notifier
	Registry   *prometheus.Registry

	redisStorage *storage.RedisStorage
}

func NewApp(ctx context.Context, logger *slog.Logger, conf *config.Config, newAgent usecase.AgentFactory) (*App, error) {
	player1, err := conf.Executables.Command1()
	if err != nil {
		return nil, err
	}

	player2, err := conf.Executables.Command2()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	notifier := service.NewNotifier(logger)
	notifier.Register("metrics", recorder)

	controller := usecase.NewGameController(logger, usecase.GameSettings{
		Size:         conf.Board.Dimensions,
		RunLength:    conf.Board.RunLength,
		Commands:     [2][]string{player1, player2},
		TickInterval: conf.Game.TickInterval,
		MoveTimeout:  conf.Game.MoveTimeout,
	}, newAgent, notifier, recorder)

	app := &App{
		logger:     logger.With("component", "app"),
		Controller: controller,
		Notifier:   notifier,
		Registry:   registry,
	}

	if !conf.Redis.Enabled {
		return app, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return nil, ErrAddrNotFound
	}

	app.redisStorage, err = storage.NewRedisStorage(ctx, logger, redisAddrString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	client := app.redisStorage.Connection
	notifier.Register("redis", service.NewRedisSink(
		repository.NewEventRepository(client, conf.Redis.Channel),
		repository.NewRoundRepository(client),
		controller,
	))

	return app, nil
}

// Close leaves any running round and releases the Redis connection.
func (that *App) Close(ctx context.Context) {
	that.Controller.LeaveGame(ctx)

	if that.redisStorage == nil {
		return
	}

	if err := that.redisStorage.Close(); err != nil {
		that.logger.Error("could not close redis storage", "error", err)
	}
}

// RunApp - runs the HTTP and WebSocket adapters until a signal arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	app, err := NewApp(ctx, logger, conf, usecase.ProcessAgents(logger))
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	hub := websocket.NewHub(logger)
	app.Notifier.Register("websocket", hub)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := rest.New(logger, app.Controller, app.Registry).Start(groupCtx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if err := websocket.New(logger, app.Controller, hub).Start(groupCtx, conf.SocketPort); err != nil {
			return fmt.Errorf("WebSocket server error: %w", err)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// PlayRound runs a single headless round and returns the event that ended it.
func PlayRound(ctx context.Context, logger *slog.Logger, conf *config.Config, newAgent usecase.AgentFactory) (entity.Event, error) {
	app, err := NewApp(ctx, logger, conf, newAgent)
	if err != nil {
		return entity.Event{}, err
	}
	defer app.Close(context.WithoutCancel(ctx))

	over := make(chan entity.Event, 1)
	app.Notifier.Register("play", service.SinkFunc(func(_ context.Context, event entity.Event) error {
		if event.IsRoundOver() {
			select {
			case over <- event:
			default:
			}
		}
		return nil
	}))

	if err = app.Controller.EnterGame(ctx); err != nil {
		return entity.Event{}, err
	}

	select {
	case event := <-over:
		return event, nil
	case <-ctx.Done():
		return entity.Event{}, fmt.Errorf("round interrupted: %w", ctx.Err())
	}
}
