package automation

import (
	"context"
	"time"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/routing"
)

// Store is the part of the record store automation reads and writes.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (model.Room, error)
	UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
	ListOpenRoomsByTenant(ctx context.Context, tenantID string) ([]model.Room, error)
	ListAutoRules(ctx context.Context, tenantID string, types []model.RuleType, enabledOnly bool) ([]model.AutoRule, error)
	GetLastNonSystemMessage(ctx context.Context, roomID string) (model.Message, error)
	ListSystemMessagesSince(ctx context.Context, roomID string, since time.Time) ([]model.Message, error)
	InsertMessage(ctx context.Context, message model.Message) error
}

// CapacityReleaser gives back the slot an auto-closed room held.
type CapacityReleaser interface {
	Decrement(ctx context.Context, attendantID string) (int, error)
}

type Resolver interface {
	Resolve(ctx context.Context, room model.Room) (routing.Outcome, error)
}
