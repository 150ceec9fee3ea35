package room

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/capacity"
	"chat-routing-backend/internal/store/memory"
)

var fixedNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

var agent = Identity{UserID: "a1", TenantID: "t1"}

func newTestService(st *memory.Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithClock(st, capacity.NewTracker(st, logger), nil, func() time.Time { return fixedNow }, logger)
}

func seed() *memory.Store {
	st := memory.New()
	st.PutTenant(model.TenantItem{TenantID: "t1"})
	st.PutAttendant(model.Attendant{AttendantID: "a1", TenantID: "t1", ActiveConversations: 1})
	st.PutAttendant(model.Attendant{AttendantID: "a2", TenantID: "t1"})
	st.PutAttendant(model.Attendant{AttendantID: "x1", TenantID: "t2"})
	st.PutRoom(model.Room{RoomID: "room-1", TenantID: "t1", Status: model.RoomStatusActive, AttendantID: "a1"})
	st.PutRoom(model.Room{RoomID: "room-foreign", TenantID: "t2", Status: model.RoomStatusActive, AttendantID: "x1"})
	return st
}

func expectCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected service error %s, got %v", code, err)
	}
	if svcErr.Code != code {
		t.Fatalf("expected %s, got %s (%s)", code, svcErr.Code, svcErr.Message)
	}
}

func counter(t *testing.T, st *memory.Store, id string) int {
	t.Helper()
	a, err := st.GetAttendant(context.Background(), id)
	if err != nil {
		t.Fatalf("get attendant: %v", err)
	}
	return a.ActiveConversations
}

func TestCloseReleasesCapacity(t *testing.T) {
	st := seed()
	svc := newTestService(st)

	room, err := svc.Close(context.Background(), agent, "room-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if room.Status != model.RoomStatusClosed || room.ResolutionStatus != model.ResolutionResolved {
		t.Fatalf("unexpected room %+v", room)
	}
	if room.ClosedAt == nil || !room.ClosedAt.Equal(fixedNow) {
		t.Fatalf("closedAt not set: %v", room.ClosedAt)
	}
	if got := counter(t, st, "a1"); got != 0 {
		t.Fatalf("expected counter 0, got %d", got)
	}

	_, err = svc.Close(context.Background(), agent, "room-1")
	expectCode(t, err, ErrorCodeConflict)
	if got := counter(t, st, "a1"); got != 0 {
		t.Fatalf("second close must not touch the counter, got %d", got)
	}
}

func TestCloseTenantIsolation(t *testing.T) {
	svc := newTestService(seed())

	_, err := svc.Close(context.Background(), agent, "room-foreign")
	expectCode(t, err, ErrorCodeForbidden)

	_, err = svc.Close(context.Background(), agent, "missing")
	expectCode(t, err, ErrorCodeNotFound)

	_, err = svc.Close(context.Background(), Identity{}, "room-1")
	expectCode(t, err, ErrorCodeUnauthorized)
}

func TestTransferMovesCapacity(t *testing.T) {
	st := seed()
	svc := newTestService(st)

	room, err := svc.Transfer(context.Background(), agent, "room-1", "a2")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if room.AttendantID != "a2" || room.AssignedAt == nil {
		t.Fatalf("unexpected room %+v", room)
	}
	if got := counter(t, st, "a1"); got != 0 {
		t.Fatalf("previous attendant should be decremented, got %d", got)
	}
	if got := counter(t, st, "a2"); got != 1 {
		t.Fatalf("new attendant should be incremented, got %d", got)
	}

	// Transferring to the current holder changes nothing.
	if _, err := svc.Transfer(context.Background(), agent, "room-1", "a2"); err != nil {
		t.Fatalf("noop transfer: %v", err)
	}
	if got := counter(t, st, "a2"); got != 1 {
		t.Fatalf("noop transfer changed the counter to %d", got)
	}
}

func TestTransferValidation(t *testing.T) {
	st := seed()
	st.PutRoom(model.Room{RoomID: "room-waiting", TenantID: "t1", Status: model.RoomStatusWaiting})
	svc := newTestService(st)

	_, err := svc.Transfer(context.Background(), agent, "room-1", "")
	expectCode(t, err, ErrorCodeValidation)

	_, err = svc.Transfer(context.Background(), agent, "room-1", "ghost")
	expectCode(t, err, ErrorCodeValidation)

	_, err = svc.Transfer(context.Background(), agent, "room-1", "x1")
	expectCode(t, err, ErrorCodeValidation)

	_, err = svc.Transfer(context.Background(), agent, "room-waiting", "a2")
	expectCode(t, err, ErrorCodeConflict)
}

type closingStore struct {
	*memory.Store
}

// UpdateRoom simulates the sweep closing the room first.
func (s closingStore) UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if _, err := s.Store.UpdateRoom(ctx, roomID, model.RoomUpdate{Status: model.StatusPtr(model.RoomStatusClosed)}); err != nil {
		return model.Room{}, err
	}
	return s.Store.UpdateRoom(ctx, roomID, update, expected...)
}

func TestTransferLosesRaceToClose(t *testing.T) {
	st := seed()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewWithClock(closingStore{st}, capacity.NewTracker(st, logger), nil, func() time.Time { return fixedNow }, logger)

	_, err := svc.Transfer(context.Background(), agent, "room-1", "a2")
	expectCode(t, err, ErrorCodeConflict)
	if got := counter(t, st, "a2"); got != 0 {
		t.Fatalf("failed transfer must not increment, got %d", got)
	}
}

func TestReconcileAttendant(t *testing.T) {
	st := seed()
	st.PutAttendant(model.Attendant{AttendantID: "a1", TenantID: "t1", ActiveConversations: 5})
	svc := newTestService(st)

	count, err := svc.ReconcileAttendant(context.Background(), agent, "a1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if count != 1 || counter(t, st, "a1") != 1 {
		t.Fatalf("expected counter 1, got %d", count)
	}

	_, err = svc.ReconcileAttendant(context.Background(), agent, "x1")
	expectCode(t, err, ErrorCodeForbidden)
	_, err = svc.ReconcileAttendant(context.Background(), agent, "nobody")
	expectCode(t, err, ErrorCodeNotFound)
}

// staleReadStore answers GetRoom with a snapshot taken before another
// transfer landed.
type staleReadStore struct {
	*memory.Store
	snapshot model.Room
}

func (s staleReadStore) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	if roomID == s.snapshot.RoomID {
		return s.snapshot, nil
	}
	return s.Store.GetRoom(ctx, roomID)
}

func TestConcurrentTransfersMoveCapacityOnce(t *testing.T) {
	st := seed()
	st.PutAttendant(model.Attendant{AttendantID: "a3", TenantID: "t1"})
	snapshot, err := st.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}

	if _, err := newTestService(st).Transfer(context.Background(), agent, "room-1", "a2"); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stale := NewWithClock(staleReadStore{Store: st, snapshot: snapshot}, capacity.NewTracker(st, logger), nil, func() time.Time { return fixedNow }, logger)
	_, err = stale.Transfer(context.Background(), agent, "room-1", "a3")
	expectCode(t, err, ErrorCodeConflict)

	room, _ := st.GetRoom(context.Background(), "room-1")
	if room.AttendantID != "a2" {
		t.Fatalf("room should stay with a2, got %q", room.AttendantID)
	}
	for id, want := range map[string]int{"a1": 0, "a2": 1, "a3": 0} {
		if got := counter(t, st, id); got != want {
			t.Fatalf("%s counter = %d, want %d", id, got, want)
		}
	}
}
