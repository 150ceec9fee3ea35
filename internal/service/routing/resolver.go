package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-routing-backend/internal/model"
)

// Outcome is the assignability verdict for a room. Assigned short-circuits
// everything else; otherwise at most one of OutsideHours and AllBusy is set,
// and neither being set means an eligible team exists.
type Outcome struct {
	Assigned      bool
	AttendantName string
	OutsideHours  bool
	AllBusy       bool
}

func (o Outcome) Label() string {
	switch {
	case o.Assigned:
		return "already_assigned"
	case o.OutsideHours:
		return "outside_hours"
	case o.AllBusy:
		return "all_busy"
	default:
		return "assignable"
	}
}

func AllBusy() Outcome {
	return Outcome{AllBusy: true}
}

// Resolver answers whether a waiting room can be handed to a human right now.
// It never writes; claiming a specific attendant happens elsewhere.
type Resolver struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Resolver {
	return NewWithClock(store, time.Now, logger)
}

func NewWithClock(store Store, now func() time.Time, logger *slog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		now:    now,
		logger: logger,
	}
}

// Resolve walks business hours, then category, team and attendant routing.
// Missing configuration resolves to AllBusy; the returned error is reserved
// for store failures the caller may want to surface.
func (r *Resolver) Resolve(ctx context.Context, room model.Room) (Outcome, error) {
	outcome, err := r.resolve(ctx, room)
	if err == nil {
		observeOutcome(outcome)
	}
	return outcome, err
}

func (r *Resolver) resolve(ctx context.Context, room model.Room) (Outcome, error) {
	if room.AttendantID != "" && room.Status == model.RoomStatusActive {
		outcome := Outcome{Assigned: true}
		attendant, err := r.store.GetAttendant(ctx, room.AttendantID)
		if err != nil {
			r.logger.Warn("assigned attendant lookup failed",
				slog.String("room_id", room.RoomID),
				slog.String("attendant_id", room.AttendantID),
				slog.String("error", err.Error()),
			)
			return outcome, nil
		}
		outcome.AttendantName = attendant.DisplayName
		return outcome, nil
	}

	open, err := r.IsOpen(ctx, room.TenantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return AllBusy(), nil
		}
		return Outcome{}, err
	}
	if !open {
		return Outcome{OutsideHours: true}, nil
	}

	category, ok, err := r.category(ctx, room)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return AllBusy(), nil
	}

	routes, err := r.store.ResolveCategoryRouting(ctx, category.CategoryID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return AllBusy(), nil
		}
		return Outcome{}, fmt.Errorf("resolve category routing %s: %w", category.CategoryID, err)
	}

	for _, route := range routes {
		if !route.Config.Enabled {
			continue
		}

		attendants, err := r.store.ListTeamAttendants(ctx, route.Team.TeamID, route.Config.OnlineOnly)
		if err != nil {
			r.logger.Warn("team attendants lookup failed",
				slog.String("room_id", room.RoomID),
				slog.String("team_id", route.Team.TeamID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if route.Config.OnlineOnly {
			attendants = onlineOnly(attendants)
		}

		if TeamHasCapacity(route.Config, attendants) {
			return Outcome{}, nil
		}
	}

	return AllBusy(), nil
}

// IsOpen evaluates the tenant's business hours at the resolver's current time
// in the tenant's timezone. A failed hours lookup fails open.
func (r *Resolver) IsOpen(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := r.store.GetTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}

	loc, ok := TenantLocation(tenant.Timezone)
	if !ok {
		r.logger.Warn("unknown tenant timezone, using UTC",
			slog.String("tenant_id", tenantID),
			slog.String("timezone", tenant.Timezone),
		)
	}

	windows, err := r.store.ListBusinessHours(ctx, tenantID)
	if err != nil {
		r.logger.Warn("business hours lookup failed, treating tenant as open",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	return IsOpenAt(windows, r.now().In(loc)), nil
}

// category returns the room's own category, or the tenant default when the
// room names none. A named category that is missing or foreign is not found.
func (r *Resolver) category(ctx context.Context, room model.Room) (model.ServiceCategory, bool, error) {
	if room.CategoryID != "" {
		category, err := r.store.GetCategory(ctx, room.CategoryID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			return model.ServiceCategory{}, false, nil
		case err != nil:
			return model.ServiceCategory{}, false, fmt.Errorf("get category %s: %w", room.CategoryID, err)
		case category.TenantID != room.TenantID:
			return model.ServiceCategory{}, false, nil
		}
		return category, true, nil
	}

	category, err := r.store.GetDefaultCategory(ctx, room.TenantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ServiceCategory{}, false, nil
		}
		return model.ServiceCategory{}, false, fmt.Errorf("get default category for %s: %w", room.TenantID, err)
	}
	return category, true, nil
}

// TeamHasCapacity is the per-team capacity rule: over-capacity teams are always
// eligible, otherwise one attendant strictly below the limit is enough.
func TeamHasCapacity(cfg model.AssignmentConfig, attendants []model.Attendant) bool {
	if len(attendants) == 0 {
		return false
	}
	if cfg.AllowOverCapacity {
		return true
	}
	for _, a := range attendants {
		if a.ActiveConversations < cfg.CapacityLimit {
			return true
		}
	}
	return false
}

func onlineOnly(attendants []model.Attendant) []model.Attendant {
	out := attendants[:0:0]
	for _, a := range attendants {
		if a.OnlineStatus == model.OnlineStatusOnline {
			out = append(out, a)
		}
	}
	return out
}
