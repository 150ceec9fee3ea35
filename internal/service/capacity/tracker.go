// Package capacity keeps each attendant's activeConversations counter in step
// with the rooms they hold.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chat-routing-backend/internal/model"
)

type Tracker struct {
	store  Store
	logger *slog.Logger
}

func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

func (t *Tracker) Increment(ctx context.Context, attendantID string) (int, error) {
	if attendantID == "" {
		return 0, nil
	}
	n, err := t.store.IncrementAttendantCapacity(ctx, attendantID)
	observe("increment", err)
	if err != nil {
		return 0, fmt.Errorf("increment capacity for %s: %w", attendantID, err)
	}
	return n, nil
}

// Decrement lowers the counter by one, stopping at zero.
func (t *Tracker) Decrement(ctx context.Context, attendantID string) (int, error) {
	if attendantID == "" {
		return 0, nil
	}
	n, err := t.store.DecrementAttendantCapacity(ctx, attendantID)
	observe("decrement", err)
	if err != nil {
		return 0, fmt.Errorf("decrement capacity for %s: %w", attendantID, err)
	}
	return n, nil
}

// ApplyTransition issues the counter changes for a room moving from before to
// after. Either side may be nil for creation or deletion. A reassignment is a
// decrement of the previous holder followed by an increment of the new one.
func (t *Tracker) ApplyTransition(ctx context.Context, before, after *model.Room) error {
	prevHolds := before.HoldsCapacity()
	nextHolds := after.HoldsCapacity()

	if prevHolds && nextHolds && before.AttendantID == after.AttendantID {
		return nil
	}

	var errs []error
	if prevHolds {
		if _, err := t.Decrement(ctx, before.AttendantID); err != nil {
			errs = append(errs, err)
		}
	}
	if nextHolds {
		if _, err := t.Increment(ctx, after.AttendantID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		t.logger.Warn("capacity transition incomplete, reconcile the attendants involved",
			slog.String("room_id", roomID(before, after)),
			slog.String("error", errors.Join(errs...).Error()),
		)
		return errors.Join(errs...)
	}
	return nil
}

// Reconcile recomputes the counter from the attendant's open rooms and
// overwrites the stored value.
func (t *Tracker) Reconcile(ctx context.Context, attendantID string) (int, error) {
	count, err := t.store.CountOpenRoomsByAttendant(ctx, attendantID)
	if err != nil {
		observe("reconcile", err)
		return 0, fmt.Errorf("count open rooms for %s: %w", attendantID, err)
	}
	err = t.store.SetAttendantCapacity(ctx, attendantID, count)
	observe("reconcile", err)
	if err != nil {
		return 0, fmt.Errorf("set capacity for %s: %w", attendantID, err)
	}
	t.logger.Info("attendant capacity reconciled",
		slog.String("attendant_id", attendantID),
		slog.Int("active_conversations", count),
	)
	return count, nil
}

func roomID(before, after *model.Room) string {
	if after != nil {
		return after.RoomID
	}
	if before != nil {
		return before.RoomID
	}
	return ""
}
