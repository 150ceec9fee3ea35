// Package store selects and opens the record store backend.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/service/automation"
	"chat-routing-backend/internal/service/capacity"
	"chat-routing-backend/internal/service/room"
	"chat-routing-backend/internal/service/routing"
	"chat-routing-backend/internal/store/dynamo"
	"chat-routing-backend/internal/store/memory"
	"chat-routing-backend/internal/store/postgres"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Store is everything the routing, capacity, automation and room services
// need from a backend.
type Store interface {
	routing.Store
	capacity.Store
	automation.Store
	room.Store
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
	_ Store = (*dynamo.Store)(nil)
)

// Open connects to backend. An empty backend means dynamodb.
func Open(ctx context.Context, backend string, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendDynamoDB:
		db, err := database.NewDatabase(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("record store opened", "backend", BackendDynamoDB)
		return dynamo.New(db), nil

	case BackendPostgres:
		if err := env.Require(env.DatabaseURL); err != nil {
			return nil, err
		}
		s, err := postgres.New(ctx, env.Get(env.DatabaseURL), postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("record store opened", "backend", BackendPostgres)
		return s, nil

	case BackendMemory:
		logger.Warn("record store is in-memory; data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}
