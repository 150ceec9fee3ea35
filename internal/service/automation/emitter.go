package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/model"

	"github.com/google/uuid"
)

// Emitter posts rule-driven system messages into rooms, at most once per rule
// per conversation episode. An episode starts at the last non-system message;
// a system message carrying the rule marker inside the episode means the rule
// already fired.
type Emitter struct {
	store     Store
	now       func() time.Time
	newID     func() string
	publisher events.Publisher
	logger    *slog.Logger
}

func NewEmitter(store Store, publisher events.Publisher, now func() time.Time, logger *slog.Logger) *Emitter {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		store:     store,
		now:       now,
		newID:     uuid.NewString,
		publisher: publisher,
		logger:    logger,
	}
}

// EmitOnce inserts content as a system message tagged with ruleType unless the
// current episode already has one. It reports whether a message was inserted.
//
// The check and the insert are not atomic: two concurrent callers can both
// emit.
func (e *Emitter) EmitOnce(ctx context.Context, room model.Room, ruleType model.RuleType, content string) (bool, error) {
	since := time.Time{}
	last, err := e.store.GetLastNonSystemMessage(ctx, room.RoomID)
	switch {
	case err == nil:
		since = last.CreatedAt
	case !errors.Is(err, model.ErrNotFound):
		return false, fmt.Errorf("last non-system message for %s: %w", room.RoomID, err)
	}

	existing, err := e.store.ListSystemMessagesSince(ctx, room.RoomID, since)
	if err != nil {
		return false, fmt.Errorf("system messages for %s: %w", room.RoomID, err)
	}
	for _, msg := range existing {
		if msg.AutoRule() == ruleType {
			return false, nil
		}
	}

	messageID := e.newID()
	msg := model.Message{
		PK:         model.MessagePK(room.RoomID, messageID),
		MessageID:  messageID,
		RoomID:     room.RoomID,
		TenantID:   room.TenantID,
		SenderType: model.SenderSystem,
		Content:    content,
		Metadata:   map[string]string{model.MetadataAutoRule: string(ruleType)},
		CreatedAt:  e.now().UTC(),
	}
	if err := e.store.InsertMessage(ctx, msg); err != nil {
		return false, fmt.Errorf("insert %s message into %s: %w", ruleType, room.RoomID, err)
	}

	actionsEmitted.WithLabelValues(string(ruleType)).Inc()
	e.logger.Info("automation message emitted",
		slog.String("tenant_id", room.TenantID),
		slog.String("room_id", room.RoomID),
		slog.String("rule", string(ruleType)),
		slog.String("message_id", messageID),
	)
	events.PublishBestEffort(ctx, e.publisher, e.logger, events.TypeRuleFired, events.RuleFired{
		TenantID:  room.TenantID,
		RoomID:    room.RoomID,
		RuleType:  string(ruleType),
		MessageID: messageID,
	})
	return true, nil
}
