package automation

import (
	"context"
	"log/slog"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/routing"
)

// Assigner is called by the intake flow right after a room is created. It
// greets the visitor and reports whether a human can take the room.
type Assigner struct {
	store    Store
	emitter  *Emitter
	resolver Resolver
	logger   *slog.Logger
}

func NewAssigner(store Store, emitter *Emitter, resolver Resolver, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{
		store:    store,
		emitter:  emitter,
		resolver: resolver,
		logger:   logger,
	}
}

// OnRoomCreated never fails: a missing room or a resolver error answers
// AllBusy, and a welcome message that cannot be posted is only logged.
func (a *Assigner) OnRoomCreated(ctx context.Context, roomID string) routing.Outcome {
	logger := a.logger.With(slog.String("room_id", roomID))

	room, err := a.store.GetRoom(ctx, roomID)
	if err != nil {
		logger.Warn("room lookup failed", slog.String("error", err.Error()))
		return routing.AllBusy()
	}
	logger = logger.With(slog.String("tenant_id", room.TenantID))

	a.welcome(ctx, logger, room)

	outcome, err := a.resolver.Resolve(ctx, room)
	if err != nil {
		logger.Error("eligibility resolution failed", slog.String("error", err.Error()))
		return routing.AllBusy()
	}
	return outcome
}

func (a *Assigner) welcome(ctx context.Context, logger *slog.Logger, room model.Room) {
	rules, err := a.store.ListAutoRules(ctx, room.TenantID, []model.RuleType{model.RuleWelcomeMessage}, true)
	if err != nil {
		sweepErrors.WithLabelValues("welcome").Inc()
		logger.Warn("welcome rule lookup failed", slog.String("error", err.Error()))
		return
	}
	for _, rule := range rules {
		if rule.MessageContent == "" {
			continue
		}
		if _, err := a.emitter.EmitOnce(ctx, room, model.RuleWelcomeMessage, rule.MessageContent); err != nil {
			sweepErrors.WithLabelValues("welcome").Inc()
			logger.Warn("welcome message failed", slog.String("error", err.Error()))
		}
		return
	}
}
