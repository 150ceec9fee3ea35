package model

import "time"

type RuleType string

const (
	RuleWelcomeMessage    RuleType = "welcome_message"
	RuleInactivityWarning RuleType = "inactivity_warning"
	RuleAutoClose         RuleType = "auto_close"
	RuleAttendantAbsence  RuleType = "attendant_absence"
)

type AutoRule struct {
	PK             string   `dynamodbav:"pk"`
	RuleID         string   `dynamodbav:"ruleId"`
	TenantID       string   `dynamodbav:"tenantId"`
	RuleType       RuleType `dynamodbav:"ruleType"`
	IsEnabled      bool     `dynamodbav:"isEnabled"`
	TriggerMinutes *int     `dynamodbav:"triggerMinutes,omitempty"`
	MessageContent string   `dynamodbav:"messageContent"`
}

type SenderType string

const (
	SenderVisitor   SenderType = "visitor"
	SenderAttendant SenderType = "attendant"
	SenderSystem    SenderType = "system"
)

// MetadataAutoRule is the message metadata key tying a system message to the
// rule that produced it.
const MetadataAutoRule = "autoRule"

func MessagePK(roomID, messageID string) string {
	return TenantScopedPK(roomID, messageID)
}

type Message struct {
	PK         string            `dynamodbav:"pk"`
	MessageID  string            `dynamodbav:"messageId"`
	RoomID     string            `dynamodbav:"roomId"`
	TenantID   string            `dynamodbav:"tenantId"`
	SenderType SenderType        `dynamodbav:"senderType"`
	SenderID   string            `dynamodbav:"senderId,omitempty"`
	Content    string            `dynamodbav:"content"`
	Metadata   map[string]string `dynamodbav:"metadata,omitempty"`
	CreatedAt  time.Time         `dynamodbav:"createdAt"`
}

func (m Message) AutoRule() RuleType {
	if m.Metadata == nil {
		return ""
	}
	return RuleType(m.Metadata[MetadataAutoRule])
}
