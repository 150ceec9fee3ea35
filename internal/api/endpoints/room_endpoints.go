package endpoints

import (
	"context"
	"net/http"

	"chat-routing-backend/internal/dto"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/room"
)

type RoomEndpoints interface {
	Close(http.ResponseWriter, *http.Request) error
	Transfer(http.ResponseWriter, *http.Request) error
	Reconcile(http.ResponseWriter, *http.Request) error
}

type RoomService interface {
	Close(ctx context.Context, identity room.Identity, roomID string) (model.Room, error)
	Transfer(ctx context.Context, identity room.Identity, roomID, toAttendantID string) (model.Room, error)
	ReconcileAttendant(ctx context.Context, identity room.Identity, attendantID string) (int, error)
}

type roomEndpoints struct {
	service RoomService
}

func NewRoomEndpoints(service RoomService) RoomEndpoints {
	return &roomEndpoints{service: service}
}

func (h *roomEndpoints) Close(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleClose,
	})
}

func (h *roomEndpoints) Transfer(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleTransfer,
	})
}

func (h *roomEndpoints) Reconcile(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleReconcile,
	})
}

func (h *roomEndpoints) handleClose(w http.ResponseWriter, r *http.Request) error {
	roomID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	identity, err := identity(r)
	if err != nil {
		return err
	}

	updated, err := h.service.Close(r.Context(), identity, roomID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ToRoomResponse(updated))
}

func (h *roomEndpoints) handleTransfer(w http.ResponseWriter, r *http.Request) error {
	roomID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	identity, err := identity(r)
	if err != nil {
		return err
	}

	var req dto.TransferRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	updated, err := h.service.Transfer(r.Context(), identity, roomID, req.AttendantID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ToRoomResponse(updated))
}

func (h *roomEndpoints) handleReconcile(w http.ResponseWriter, r *http.Request) error {
	attendantID, err := pathID(r, "id")
	if err != nil {
		return err
	}
	identity, err := identity(r)
	if err != nil {
		return err
	}

	count, err := h.service.ReconcileAttendant(r.Context(), identity, attendantID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ReconcileResponse{
		AttendantID:         attendantID,
		ActiveConversations: count,
	})
}
