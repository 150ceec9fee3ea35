// Package app wires the record store, the event publisher and the domain
// services shared by the binaries.
package app

import (
	"context"
	"log/slog"
	"time"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/service/automation"
	"chat-routing-backend/internal/service/capacity"
	"chat-routing-backend/internal/service/room"
	"chat-routing-backend/internal/service/routing"
	"chat-routing-backend/internal/store"
)

type App struct {
	Store     store.Store
	Publisher events.Publisher
	Services  api.Services

	// sweepPool fans tenants out during a sweep. It is separate from the
	// request queue because the sweep endpoint itself runs on that queue.
	sweepPool *queue.RequestQueueManager
	logger    *slog.Logger
}

func New(ctx context.Context, logger *slog.Logger) (*App, error) {
	st, err := store.Open(ctx, env.Get(env.StoreBackend), logger)
	if err != nil {
		return nil, err
	}

	publisher, err := openPublisher(ctx, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return NewWithStore(st, publisher, env.Int(env.SweepWorkers, 4), logger), nil
}

// NewWithStore builds the services over an already opened store.
func NewWithStore(st store.Store, publisher events.Publisher, sweepWorkers int, logger *slog.Logger) *App {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if sweepWorkers <= 0 {
		sweepWorkers = 1
	}

	sweepPool := queue.NewRequestQueueManager(sweepWorkers*4, sweepWorkers, logger)

	resolver := routing.New(st, logger)
	tracker := capacity.NewTracker(st, logger)
	emitter := automation.NewEmitter(st, publisher, time.Now, logger)

	return &App{
		Store:     st,
		Publisher: publisher,
		Services: api.Services{
			Store:    st,
			Resolver: resolver,
			Assigner: automation.NewAssigner(st, emitter, resolver, logger),
			Sweeper:  automation.NewSweeper(st, emitter, tracker, sweepPool, logger),
			Rooms:    room.New(st, tracker, publisher, logger),
		},
		sweepPool: sweepPool,
		logger:    logger,
	}
}

func openPublisher(ctx context.Context, logger *slog.Logger) (events.Publisher, error) {
	url := env.Get(env.AMQPURL)
	if url == "" {
		logger.Info("AMQP_URL not set, domain events are dropped")
		return events.Noop{}, nil
	}
	return events.Dial(ctx, events.ConnectionOptions{
		URL:           url,
		Exchange:      env.GetOrDefault(env.AMQPExchange, "chat.routing"),
		RetryAttempts: 5,
		Delay:         time.Second,
		Logger:        logger,
	})
}

// Close stops the sweep pool and releases the publisher and the store.
func (a *App) Close() {
	a.sweepPool.Shutdown()
	if err := a.Publisher.Close(); err != nil {
		a.logger.Warn("close publisher", slog.String("error", err.Error()))
	}
	if err := a.Store.Close(); err != nil {
		a.logger.Warn("close store", slog.String("error", err.Error()))
	}
}
