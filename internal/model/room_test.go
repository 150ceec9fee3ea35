package model

import (
	"testing"
	"time"
)

func TestRoomUpdateApply(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	closedAt := created.Add(time.Hour)
	room := Room{RoomID: "r1", Status: RoomStatusActive, AttendantID: "a1", CreatedAt: created, UpdatedAt: created}

	got := RoomUpdate{
		Status:           StatusPtr(RoomStatusClosed),
		ResolutionStatus: ResolutionPtr(ResolutionPending),
		ClosedAt:         &closedAt,
		UpdatedAt:        closedAt,
	}.Apply(room)

	if got.Status != RoomStatusClosed || got.ResolutionStatus != ResolutionPending {
		t.Fatalf("unexpected room %+v", got)
	}
	if got.AttendantID != "a1" {
		t.Fatalf("attendant must be kept, got %q", got.AttendantID)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(closedAt) || !got.UpdatedAt.Equal(closedAt) {
		t.Fatalf("timestamps not applied: %+v", got)
	}
	if room.Status != RoomStatusActive {
		t.Fatalf("Apply must not mutate its input")
	}

	cleared := RoomUpdate{ClearAttendant: true}.Apply(room)
	if cleared.AttendantID != "" || !cleared.UpdatedAt.Equal(created) {
		t.Fatalf("unexpected cleared room %+v", cleared)
	}
}

func TestRoomUpdateValidate(t *testing.T) {
	id := "a2"
	if err := (RoomUpdate{ClearAttendant: true, AttendantID: &id}).Validate(); err == nil {
		t.Fatalf("expected error when setting and clearing the attendant")
	}
	if err := (RoomUpdate{AttendantID: &id}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHoldsCapacity(t *testing.T) {
	tests := []struct {
		name string
		room *Room
		want bool
	}{
		{"nil", nil, false},
		{"waiting with attendant", &Room{Status: RoomStatusWaiting, AttendantID: "a1"}, true},
		{"active with attendant", &Room{Status: RoomStatusActive, AttendantID: "a1"}, true},
		{"closed with attendant", &Room{Status: RoomStatusClosed, AttendantID: "a1"}, false},
		{"active without attendant", &Room{Status: RoomStatusActive}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.room.HoldsCapacity(); got != tt.want {
				t.Fatalf("HoldsCapacity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoomUpdateMatches(t *testing.T) {
	room := Room{Status: RoomStatusActive, AttendantID: "a1"}

	tests := []struct {
		name     string
		update   RoomUpdate
		expected []RoomStatus
		want     bool
	}{
		{"no guards", RoomUpdate{}, nil, true},
		{"status matches", RoomUpdate{}, []RoomStatus{RoomStatusActive}, true},
		{"status moved on", RoomUpdate{}, []RoomStatus{RoomStatusWaiting}, false},
		{"same holder", RoomUpdate{ExpectedAttendantID: StringPtr("a1")}, []RoomStatus{RoomStatusActive}, true},
		{"holder changed", RoomUpdate{ExpectedAttendantID: StringPtr("a2")}, []RoomStatus{RoomStatusActive}, false},
		{"expects no holder", RoomUpdate{ExpectedAttendantID: StringPtr("")}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.update.Matches(room, tt.expected...); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
