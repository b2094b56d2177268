// Package main is the entrypoint for the click log consumer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/logging"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("process", "worker")

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Give the broker and database time to come up alongside us.
	if cfg.SettleDelay > 0 {
		logger.Info("waiting before connecting", "delay", cfg.SettleDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.SettleDelay):
		}
	}

	ackMode, err := analytics.ParseAckMode(cfg.AckMode)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.ChannelDriver == config.DriverRedis {
		cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithClientName("linkpulse-worker"), cache.WithPoolSize(4))
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
			)
			return err
		}
		defer cacheClient.Close()
		redisClient = cacheClient.Client()
	}

	channel, err := analytics.OpenChannel(analytics.ChannelConfig{
		Driver:       cfg.ChannelDriver,
		Name:         cfg.ChannelName,
		KafkaBrokers: cfg.KafkaBrokers,
		AckMode:      ackMode,
		DialTimeout:  cfg.DialTimeout,
		BlockTimeout: cfg.BlockTimeout,
		ConsumerID:   analytics.NewConsumerID(),
	}, redisClient)
	if err != nil {
		return err
	}
	defer channel.Close()

	if err := channel.Declare(ctx); err != nil {
		logger.Error("failed to declare event channel",
			"driver", cfg.ChannelDriver,
			"channel", cfg.ChannelName,
			"error", err,
		)
		return err
	}
	logger.Info("connected to event channel", "driver", cfg.ChannelDriver, "channel", cfg.ChannelName)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		return err
	}
	defer repo.Close()

	recorder := metrics.NewInMemory()

	reporter := analytics.NewReporter(channel, recorder, recorder, logger, cfg.ReportSchedule)
	if err := reporter.Start(ctx); err != nil {
		return err
	}

	consumer := analytics.NewConsumer(channel, repository.NewClickLogRepository(repo), logger, recorder)
	if err := consumer.Run(ctx); err != nil {
		return err
	}

	reporter.Report(context.Background())
	return nil
}
