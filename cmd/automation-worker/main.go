package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/router"
	"chat-routing-backend/internal/app"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/lock"
	"chat-routing-backend/internal/logging"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/scheduler"
)

const sweepJob = "automation-sweep"

func main() {
	logger := logging.New(env.Get(env.LogLevel))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("automation worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := env.Require(env.ServiceSecretKey); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	var locker scheduler.Locker
	if addr := env.Get(env.ChatRedisURL); addr != "" {
		client, err := lock.Connect(addr, env.Get(env.ChatRedisPass))
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.New(client, "chat-routing:lock:")
	} else {
		logger.Warn("CHAT_REDIS_URL not set, every replica runs the scheduled sweep")
	}

	sched := scheduler.New(locker, logger,
		scheduler.WithTimeout(env.Duration(env.SweepTimeout, 5*time.Minute)),
		scheduler.WithLockTTL(env.Duration(env.SweepLockTTL, 5*time.Minute)),
	)
	sweeper := application.Services.Sweeper
	if err := sched.Add(sweepJob, env.GetOrDefault(env.SweepSchedule, "@every 1m"), func(ctx context.Context) error {
		_, err := sweeper.Run(ctx)
		return err
	}); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warn("scheduler stop timed out", slog.String("error", err.Error()))
		}
	}()

	queueManager := queue.NewRequestQueueManager(16, 4, logger)
	defer queueManager.Shutdown()

	server := api.NewAPIServer(
		env.GetOrDefault(env.ListenAddr, ":8081"),
		queueManager,
		application.Services,
		logger,
		router.UtilsRoutes("/api/automation/v1", "automation-worker"),
		router.AutomationRoutes("/api/automation/v1"),
	)

	return server.Run(ctx)
}
