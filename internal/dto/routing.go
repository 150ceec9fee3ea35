package dto

import (
	"time"

	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/routing"
)

// AssignmentResponse is what the intake flow gets back after a room is
// created.
type AssignmentResponse struct {
	Assigned      bool   `json:"assigned"`
	AttendantName string `json:"attendantName,omitempty"`
	OutsideHours  bool   `json:"outsideHours"`
	AllBusy       bool   `json:"allBusy"`
	Outcome       string `json:"outcome"`
}

func ToAssignmentResponse(o routing.Outcome) AssignmentResponse {
	return AssignmentResponse{
		Assigned:      o.Assigned,
		AttendantName: o.AttendantName,
		OutsideHours:  o.OutsideHours,
		AllBusy:       o.AllBusy,
		Outcome:       o.Label(),
	}
}

type RoomResponse struct {
	RoomID           string     `json:"roomId"`
	TenantID         string     `json:"tenantId"`
	VisitorID        string     `json:"visitorId,omitempty"`
	Status           string     `json:"status"`
	AttendantID      string     `json:"attendantId,omitempty"`
	CategoryID       string     `json:"categoryId,omitempty"`
	ResolutionStatus string     `json:"resolutionStatus,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
}

func ToRoomResponse(r model.Room) RoomResponse {
	return RoomResponse{
		RoomID:           r.RoomID,
		TenantID:         r.TenantID,
		VisitorID:        r.VisitorID,
		Status:           string(r.Status),
		AttendantID:      r.AttendantID,
		CategoryID:       r.CategoryID,
		ResolutionStatus: string(r.ResolutionStatus),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		AssignedAt:       r.AssignedAt,
		ClosedAt:         r.ClosedAt,
	}
}

type TransferRoomRequest struct {
	AttendantID string `json:"attendantId"`
}

type ReconcileResponse struct {
	AttendantID         string `json:"attendantId"`
	ActiveConversations int    `json:"activeConversations"`
}
