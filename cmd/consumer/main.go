package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gtstats/internal/app"
	"gtstats/internal/kafka"
	"gtstats/internal/repository"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	dotenvErr := app.LoadDotEnv()
	cfg := app.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting GTStats checkpoint consumer",
		slog.String("version", Version),
		slog.String("component", "consumer"),
	)
	if dotenvErr != nil {
		logger.Debug("no .env file loaded", slog.String("error", dotenvErr.Error()))
	}

	if err := cfg.ValidateConsumer(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCtx, err := app.NewConsumerContext(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application context",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	repo := repository.NewClickHouseRepository(appCtx.ClickHouse, cfg.ClickHouse.Database, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare ClickHouse schema",
			slog.String("error", err.Error()),
		)
		_ = appCtx.Shutdown(ctx)
		os.Exit(1)
	}

	consumer := kafka.NewBatchConsumer(kafka.BatchConsumerConfig{
		Reader:        appCtx.Consumer,
		Repository:    repo,
		RetryWriter:   appCtx.RetryWriter,
		DeadWriter:    appCtx.DeadWriter,
		BatchSize:     cfg.Consumer.BatchSize,
		FlushInterval: cfg.Consumer.FlushInterval,
		MaxRetries:    cfg.Consumer.MaxRetries,
		Logger:        logger,
	})
	logger.Info("batch consumer created",
		slog.Int("batch_size", cfg.Consumer.BatchSize),
		slog.Duration("flush_interval", cfg.Consumer.FlushInterval),
		slog.Int("max_retries", cfg.Consumer.MaxRetries),
	)

	metricsServer := &http.Server{
		Addr:         cfg.Consumer.MetricsAddr,
		Handler:      promhttp.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	appCtx.AddServer(metricsServer)
	go func() {
		logger.Info("metrics server starting",
			slog.String("address", cfg.Consumer.MetricsAddr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error",
				slog.String("error", err.Error()),
			)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go consumer.Start(consumerCtx)

	// Stop the loop and flush the pending batch before Kafka and ClickHouse close.
	appCtx.OnShutdown(func() {
		stopConsumer()
		consumer.Stop()
		logger.Info("consumer stopped")
	})

	logger.Info("GTStats checkpoint consumer is running",
		slog.String("checkpoint_topic", cfg.Kafka.TopicCheckpoints),
		slog.String("retry_topic", cfg.Kafka.TopicRetry),
		slog.String("dead_topic", cfg.Kafka.TopicDead),
	)

	if err := app.WaitForShutdown(ctx, appCtx, 30*time.Second); err != nil {
		logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("GTStats checkpoint consumer shutdown complete")
}
