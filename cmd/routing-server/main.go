package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/router"
	"chat-routing-backend/internal/app"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/logging"
	"chat-routing-backend/internal/queue"
)

func main() {
	logger := logging.New(env.Get(env.LogLevel))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("routing server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := env.Require(env.UserSecretKey, env.ServiceSecretKey); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	queueManager := queue.NewRequestQueueManager(64, 16, logger)
	defer queueManager.Shutdown()

	server := api.NewAPIServer(
		env.GetOrDefault(env.ListenAddr, ":8080"),
		queueManager,
		application.Services,
		logger,
		router.UtilsRoutes("/api/routing/v1", "routing-server"),
		router.RoutingRoutes("/api/routing/v1"),
	)

	return server.Run(ctx)
}
