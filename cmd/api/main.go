// Package main is the entrypoint for the linkpulse API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/handler"
	"github.com/linkpulse/linkpulse/internal/logging"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/repository"
	"github.com/linkpulse/linkpulse/internal/server"
	"github.com/linkpulse/linkpulse/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		return err
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.MigrateOnStart {
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithClientName("linkpulse-api"))
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
		)
		return err
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	ackMode, err := analytics.ParseAckMode(cfg.AckMode)
	if err != nil {
		return err
	}
	channel, err := analytics.OpenChannel(analytics.ChannelConfig{
		Driver:       cfg.ChannelDriver,
		Name:         cfg.ChannelName,
		KafkaBrokers: cfg.KafkaBrokers,
		AckMode:      ackMode,
		DialTimeout:  cfg.DialTimeout,
		BlockTimeout: cfg.BlockTimeout,
	}, cacheClient.Client())
	if err != nil {
		return err
	}

	// The redirect path must come up even when the broker is down.
	declareCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	if err := channel.Declare(declareCtx); err != nil {
		logger.Warn("event channel not declared, clicks may be dropped",
			"driver", cfg.ChannelDriver,
			"channel", cfg.ChannelName,
			"error", err,
		)
	}
	cancel()

	recorder := metrics.NewInMemory()
	clickLog := repository.NewClickLogRepository(repo)

	publisher := analytics.NewPublisher(channel, logger, recorder, analytics.PublisherOptions{
		PublishTimeout: cfg.PublishTimeout,
		BufferSize:     cfg.BufferSize,
		FailOpen:       cfg.FailOpen,
	})
	publisher.Start()

	linkService := service.NewLinkService(repo, cacheClient, clickLog, logger, recorder)
	redirectService := service.NewRedirectService(repo, cacheClient, publisher, logger, recorder)

	router := server.NewRouter(server.Handlers{
		Fallback: handler.New(),
		Health: handler.NewHealthHandler(
			handler.HealthCheck{Name: "postgres", Checker: repo},
			handler.HealthCheck{Name: "redis", Checker: cacheClient},
		),
		Metrics:  handler.NewMetricsHandler(recorder).WithPublishBuffer(publisher),
		Link:     handler.NewLinkHandler(linkService, cfg.BaseURL, logger),
		Redirect: handler.NewRedirectHandler(redirectService, logger),
	}, server.RouterOptions{
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
		IsDevelopment:      cfg.IsDevelopment(),
	}, logger)

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the publisher drains into the channel before the channel closes.
	srv.OnShutdown("event channel", func(context.Context) error { return channel.Close() })
	srv.OnShutdown("click publisher", publisher.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"channel_driver", cfg.ChannelDriver,
		"fail_open", cfg.FailOpen,
	)

	return srv.Run(ctx)
}
