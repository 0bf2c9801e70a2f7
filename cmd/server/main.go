package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gtstats/internal/api"
	"gtstats/internal/app"
	"gtstats/internal/kafka"
	"gtstats/internal/repository"
	"gtstats/internal/session"
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

	logger.Info("starting GTStats API server",
		slog.String("version", Version),
		slog.String("component", "server"),
	)
	if dotenvErr != nil {
		logger.Debug("no .env file loaded", slog.String("error", dotenvErr.Error()))
	}

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	appCtx, err := app.NewServerContext(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application context",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	store := repository.NewGameStore(appCtx.S3, cfg.Storage.Bucket, logger)
	actions := repository.NewClickHouseRepository(appCtx.ClickHouse, cfg.ClickHouse.Database, logger)
	checkpoints := kafka.NewCheckpointProducer(appCtx.Producer, cfg.Kafka.TopicCheckpoints, logger)

	live := session.New(session.Config{
		Store:        store,
		Checkpointer: checkpoints,
		ServingFirst: cfg.Player.ServingFirst,
		Logger:       logger,
	})
	logger.Info("live match ready",
		slog.String("match_id", live.Current().MatchID),
		slog.Bool("serving_first", cfg.Player.ServingFirst),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(addr, api.Dependencies{
		Store:   store,
		Actions: actions,
		Live:    live,
		Logger:  logger,
	})
	server.ReadTimeout = cfg.Server.ReadTimeout
	server.WriteTimeout = cfg.Server.WriteTimeout
	server.IdleTimeout = cfg.Server.IdleTimeout
	appCtx.AddServer(server)

	go func() {
		logger.Info("HTTP server starting",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
			slog.Duration("idle_timeout", cfg.Server.IdleTimeout),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error",
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}()

	logger.Info("GTStats API server is running",
		slog.String("address", addr),
		slog.String("health_endpoint", "/health"),
		slog.String("ready_endpoint", "/ready"),
		slog.String("metrics_endpoint", "/metrics"),
	)

	if err := app.WaitForShutdown(ctx, appCtx, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("shutdown completed with errors", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("GTStats API server shutdown complete")
}
