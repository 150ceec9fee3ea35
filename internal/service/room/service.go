package room

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Identity is the authenticated agent acting on a room.
type Identity struct {
	UserID   string
	TenantID string
	Email    string
}

type Store interface {
	GetRoom(ctx context.Context, roomID string) (model.Room, error)
	UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error)
	GetAttendant(ctx context.Context, attendantID string) (model.Attendant, error)
}

type CapacityTracker interface {
	ApplyTransition(ctx context.Context, before, after *model.Room) error
	Reconcile(ctx context.Context, attendantID string) (int, error)
}

type Service struct {
	store     Store
	capacity  CapacityTracker
	publisher events.Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func New(store Store, capacity CapacityTracker, publisher events.Publisher, logger *slog.Logger) *Service {
	return NewWithClock(store, capacity, publisher, time.Now, logger)
}

func NewWithClock(store Store, capacity CapacityTracker, publisher events.Publisher, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		capacity:  capacity,
		publisher: publisher,
		now:       now,
		logger:    logger,
	}
}

// Close resolves an open room on behalf of an agent and releases the slot the
// room held.
func (s *Service) Close(ctx context.Context, identity Identity, roomID string) (model.Room, error) {
	room, err := s.authorizedRoom(ctx, identity, roomID)
	if err != nil {
		return model.Room{}, err
	}
	if !room.Status.IsOpen() {
		return model.Room{}, newError(ErrorCodeConflict, "room is already closed", nil)
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateRoom(ctx, room.RoomID, model.RoomUpdate{
		Status:           model.StatusPtr(model.RoomStatusClosed),
		ResolutionStatus: model.ResolutionPtr(model.ResolutionResolved),
		ClosedAt:         &now,
		UpdatedAt:        now,
	}, model.OpenRoomStatuses...)
	if err != nil {
		return model.Room{}, storeError(err, "failed to close room")
	}

	// The slot released is the one held by whoever owned the room at close time.
	before := updated
	before.Status = room.Status
	if err := s.capacity.ApplyTransition(ctx, &before, &updated); err != nil {
		s.logger.Error("capacity release after close failed",
			slog.String("room_id", updated.RoomID),
			slog.String("attendant_id", updated.AttendantID),
			slog.String("error", err.Error()),
		)
	}

	events.PublishBestEffort(ctx, s.publisher, s.logger, events.TypeRoomClosed, events.RoomClosed{
		TenantID:         updated.TenantID,
		RoomID:           updated.RoomID,
		AttendantID:      updated.AttendantID,
		ResolutionStatus: string(model.ResolutionResolved),
		ClosedAt:         now,
		ClosedBy:         identity.UserID,
	})
	return updated, nil
}

// Transfer moves an active room to another attendant of the same tenant.
func (s *Service) Transfer(ctx context.Context, identity Identity, roomID, toAttendantID string) (model.Room, error) {
	toAttendantID = strings.TrimSpace(toAttendantID)
	if toAttendantID == "" {
		return model.Room{}, newError(ErrorCodeValidation, "attendantId is required", nil)
	}

	room, err := s.authorizedRoom(ctx, identity, roomID)
	if err != nil {
		return model.Room{}, err
	}
	if room.Status != model.RoomStatusActive {
		return model.Room{}, newError(ErrorCodeConflict, "only active rooms can be transferred", nil)
	}
	if room.AttendantID == toAttendantID {
		return room, nil
	}

	target, err := s.store.GetAttendant(ctx, toAttendantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Room{}, newError(ErrorCodeValidation, "target attendant not found", err)
		}
		return model.Room{}, newError(ErrorCodeInternal, "failed to fetch attendant", err)
	}
	if target.TenantID != identity.TenantID {
		return model.Room{}, newError(ErrorCodeValidation, "target attendant not found", nil)
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateRoom(ctx, room.RoomID, model.RoomUpdate{
		AttendantID:         &toAttendantID,
		ExpectedAttendantID: model.StringPtr(room.AttendantID),
		AssignedAt:          &now,
		UpdatedAt:           now,
	}, model.RoomStatusActive)
	if err != nil {
		return model.Room{}, storeError(err, "failed to transfer room")
	}

	if err := s.capacity.ApplyTransition(ctx, &room, &updated); err != nil {
		s.logger.Error("capacity update after transfer failed",
			slog.String("room_id", updated.RoomID),
			slog.String("from_attendant_id", room.AttendantID),
			slog.String("to_attendant_id", toAttendantID),
			slog.String("error", err.Error()),
		)
	}

	events.PublishBestEffort(ctx, s.publisher, s.logger, events.TypeRoomTransferred, events.RoomTransferred{
		TenantID:      updated.TenantID,
		RoomID:        updated.RoomID,
		FromAttendant: room.AttendantID,
		ToAttendant:   toAttendantID,
		TransferredBy: identity.UserID,
	})
	return updated, nil
}

// ReconcileAttendant rebuilds an attendant's counter from their open rooms.
func (s *Service) ReconcileAttendant(ctx context.Context, identity Identity, attendantID string) (int, error) {
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}
	attendantID = strings.TrimSpace(attendantID)
	if attendantID == "" {
		return 0, newError(ErrorCodeValidation, "attendantId is required", nil)
	}

	attendant, err := s.store.GetAttendant(ctx, attendantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, newError(ErrorCodeNotFound, "attendant not found", err)
		}
		return 0, newError(ErrorCodeInternal, "failed to fetch attendant", err)
	}
	if attendant.TenantID != identity.TenantID {
		return 0, newError(ErrorCodeForbidden, "attendant belongs to another tenant", nil)
	}

	count, err := s.capacity.Reconcile(ctx, attendantID)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to reconcile capacity", err)
	}
	return count, nil
}

func (s *Service) authorizedRoom(ctx context.Context, identity Identity, roomID string) (model.Room, error) {
	if err := validateIdentity(identity); err != nil {
		return model.Room{}, err
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return model.Room{}, newError(ErrorCodeValidation, "roomId is required", nil)
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Room{}, newError(ErrorCodeNotFound, "room not found", err)
		}
		return model.Room{}, newError(ErrorCodeInternal, "failed to fetch room", err)
	}
	if room.TenantID != identity.TenantID {
		return model.Room{}, newError(ErrorCodeForbidden, "room belongs to another tenant", nil)
	}
	return room, nil
}

func validateIdentity(identity Identity) error {
	if identity.UserID == "" || identity.TenantID == "" {
		return newError(ErrorCodeUnauthorized, "invalid user identity", nil)
	}
	return nil
}

func storeError(err error, message string) error {
	switch {
	case errors.Is(err, model.ErrConditionFailed):
		return newError(ErrorCodeConflict, "room changed concurrently", err)
	case errors.Is(err, model.ErrNotFound):
		return newError(ErrorCodeNotFound, "room not found", err)
	default:
		return newError(ErrorCodeInternal, message, err)
	}
}
