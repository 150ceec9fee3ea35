package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chat-routing-backend/internal/dto"
	"chat-routing-backend/internal/logging"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/routing"
)

type RoutingEndpoints interface {
	Assignment(http.ResponseWriter, *http.Request) error
	Eligibility(http.ResponseWriter, *http.Request) error
}

type Assigner interface {
	OnRoomCreated(ctx context.Context, roomID string) routing.Outcome
}

type EligibilityResolver interface {
	Resolve(ctx context.Context, room model.Room) (routing.Outcome, error)
}

type RoomReader interface {
	GetRoom(ctx context.Context, roomID string) (model.Room, error)
}

type routingEndpoints struct {
	assigner Assigner
	resolver EligibilityResolver
	rooms    RoomReader
}

func NewRoutingEndpoints(assigner Assigner, resolver EligibilityResolver, rooms RoomReader) RoutingEndpoints {
	return &routingEndpoints{
		assigner: assigner,
		resolver: resolver,
		rooms:    rooms,
	}
}

func (h *routingEndpoints) Assignment(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleAssignment,
	})
}

func (h *routingEndpoints) Eligibility(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleEligibility,
	})
}

// handleAssignment always answers 200: every failure inside the assigner
// already degrades to AllBusy.
func (h *routingEndpoints) handleAssignment(w http.ResponseWriter, r *http.Request) error {
	roomID, err := pathID(r, "id")
	if err != nil {
		return err
	}

	outcome := h.assigner.OnRoomCreated(r.Context(), roomID)
	logging.FromContext(r.Context(), nil).Info("assignment resolved",
		"room_id", roomID,
		"outcome", outcome.Label(),
	)
	return WriteJSON(w, http.StatusOK, dto.ToAssignmentResponse(outcome))
}

func (h *routingEndpoints) handleEligibility(w http.ResponseWriter, r *http.Request) error {
	roomID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	identity, err := identity(r)
	if err != nil {
		return err
	}

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &HTTPError{StatusCode: http.StatusNotFound, Message: "room not found", ErrorLog: err}
		}
		return fmt.Errorf("get room %s: %w", roomID, err)
	}
	// Rooms of other tenants are reported as missing.
	if room.TenantID != identity.TenantID {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "room not found",
			ErrorLog:   fmt.Errorf("room %s belongs to tenant %s", roomID, room.TenantID),
		}
	}

	outcome, err := h.resolver.Resolve(r.Context(), room)
	if err != nil {
		return fmt.Errorf("resolve eligibility for %s: %w", roomID, err)
	}
	return WriteJSON(w, http.StatusOK, dto.ToAssignmentResponse(outcome))
}
