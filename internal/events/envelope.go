package events

import (
	"time"

	"github.com/google/uuid"
)

const Producer = "chat-routing-backend"

const (
	TypeRuleFired       = "automation.rule_fired.v1"
	TypeRoomAutoClosed  = "rooms.auto_closed.v1"
	TypeRoomClosed      = "rooms.closed.v1"
	TypeRoomTransferred = "rooms.transferred.v1"
)

type Meta struct {
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	// Event name and version, e.g. rooms.closed.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps a fresh event id, the producer name and the current time.
func NewEnvelope(eventType string, data any) Envelope {
	producer := Producer
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: &producer,
			Time:     time.Now().UTC(),
			Type:     eventType,
		},
		Data: data,
	}
}

type RuleFired struct {
	TenantID  string `json:"tenant_id"`
	RoomID    string `json:"room_id"`
	RuleType  string `json:"rule_type"`
	MessageID string `json:"message_id"`
}

type RoomClosed struct {
	TenantID         string    `json:"tenant_id"`
	RoomID           string    `json:"room_id"`
	AttendantID      string    `json:"attendant_id,omitempty"`
	ResolutionStatus string    `json:"resolution_status"`
	ClosedAt         time.Time `json:"closed_at"`
	ClosedBy         string    `json:"closed_by,omitempty"`
}

type RoomTransferred struct {
	TenantID      string `json:"tenant_id"`
	RoomID        string `json:"room_id"`
	FromAttendant string `json:"from_attendant_id,omitempty"`
	ToAttendant   string `json:"to_attendant_id"`
	TransferredBy string `json:"transferred_by"`
}
