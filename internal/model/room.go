package model

import (
	"fmt"
	"time"
)

type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusClosed  RoomStatus = "closed"
)

// OpenRoomStatuses are the statuses in which a room counts against its
// attendant's capacity and is visited by the automation sweep.
var OpenRoomStatuses = []RoomStatus{RoomStatusWaiting, RoomStatusActive}

func (s RoomStatus) IsOpen() bool {
	return s == RoomStatusWaiting || s == RoomStatusActive
}

type ResolutionStatus string

const (
	// ResolutionPending marks a room closed by automation; an agent still has to
	// confirm the outcome.
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionResolved ResolutionStatus = "resolved"
)

type Room struct {
	RoomID           string           `dynamodbav:"roomId"`
	TenantID         string           `dynamodbav:"tenantId"`
	VisitorID        string           `dynamodbav:"visitorId,omitempty"`
	Status           RoomStatus       `dynamodbav:"status"`
	AttendantID      string           `dynamodbav:"attendantId,omitempty"`
	CategoryID       string           `dynamodbav:"categoryId,omitempty"`
	ResolutionStatus ResolutionStatus `dynamodbav:"resolutionStatus,omitempty"`
	CreatedAt        time.Time        `dynamodbav:"createdAt"`
	UpdatedAt        time.Time        `dynamodbav:"updatedAt"`
	AssignedAt       *time.Time       `dynamodbav:"assignedAt,omitempty"`
	ClosedAt         *time.Time       `dynamodbav:"closedAt,omitempty"`
}

// HoldsCapacity reports whether the room currently occupies a slot of its
// attendant's active conversation counter.
func (r *Room) HoldsCapacity() bool {
	return r != nil && r.AttendantID != "" && r.Status.IsOpen()
}

// RoomUpdate carries the fields to change on a room. Nil fields are left
// untouched; ClearAttendant removes the attendant reference.
//
// ExpectedAttendantID guards the write like the expected statuses do: the
// update only lands while the room is still held by that attendant. An empty
// value expects the room to have no attendant.
type RoomUpdate struct {
	Status              *RoomStatus
	AttendantID         *string
	ClearAttendant      bool
	ExpectedAttendantID *string
	ResolutionStatus *ResolutionStatus
	AssignedAt       *time.Time
	ClosedAt         *time.Time
	UpdatedAt        time.Time
}

func (u RoomUpdate) Apply(room Room) Room {
	if u.Status != nil {
		room.Status = *u.Status
	}
	if u.ClearAttendant {
		room.AttendantID = ""
	}
	if u.AttendantID != nil {
		room.AttendantID = *u.AttendantID
	}
	if u.ResolutionStatus != nil {
		room.ResolutionStatus = *u.ResolutionStatus
	}
	if u.AssignedAt != nil {
		t := *u.AssignedAt
		room.AssignedAt = &t
	}
	if u.ClosedAt != nil {
		t := *u.ClosedAt
		room.ClosedAt = &t
	}
	if !u.UpdatedAt.IsZero() {
		room.UpdatedAt = u.UpdatedAt
	}
	return room
}

func (u RoomUpdate) Validate() error {
	if u.ClearAttendant && u.AttendantID != nil {
		return fmt.Errorf("room update: attendant cannot be set and cleared at once")
	}
	return nil
}

// Matches reports whether room satisfies the guards of the update.
func (u RoomUpdate) Matches(room Room, expected ...RoomStatus) bool {
	if u.ExpectedAttendantID != nil && room.AttendantID != *u.ExpectedAttendantID {
		return false
	}
	if len(expected) == 0 {
		return true
	}
	for _, st := range expected {
		if room.Status == st {
			return true
		}
	}
	return false
}

func StringPtr(s string) *string { return &s }

func StatusPtr(s RoomStatus) *RoomStatus { return &s }

func ResolutionPtr(s ResolutionStatus) *ResolutionStatus { return &s }
