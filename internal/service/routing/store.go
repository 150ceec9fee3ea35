package routing

import (
	"context"

	"chat-routing-backend/internal/model"
)

// Store is the read side of the record store the resolver needs.
type Store interface {
	GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error)
	GetAttendant(ctx context.Context, attendantID string) (model.Attendant, error)
	ListBusinessHours(ctx context.Context, tenantID string) ([]model.BusinessHoursWindow, error)
	GetCategory(ctx context.Context, categoryID string) (model.ServiceCategory, error)
	GetDefaultCategory(ctx context.Context, tenantID string) (model.ServiceCategory, error)
	ResolveCategoryRouting(ctx context.Context, categoryID string) ([]model.TeamRoute, error)
	ListTeamAttendants(ctx context.Context, teamID string, onlineOnly bool) ([]model.Attendant, error)
}
