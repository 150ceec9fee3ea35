package model

type OnlineStatus string

const (
	OnlineStatusOnline  OnlineStatus = "online"
	OnlineStatusAway    OnlineStatus = "away"
	OnlineStatusOffline OnlineStatus = "offline"
)

type Attendant struct {
	AttendantID         string       `dynamodbav:"attendantId"`
	TenantID            string       `dynamodbav:"tenantId"`
	DisplayName         string       `dynamodbav:"displayName"`
	Email               string       `dynamodbav:"email,omitempty"`
	OnlineStatus        OnlineStatus `dynamodbav:"onlineStatus"`
	ActiveConversations int          `dynamodbav:"activeConversations"`
}

type Team struct {
	TeamID   string `dynamodbav:"teamId"`
	TenantID string `dynamodbav:"tenantId"`
	Name     string `dynamodbav:"name"`
}

func TeamMemberPK(teamID, attendantID string) string {
	return TenantScopedPK(teamID, attendantID)
}

type TeamMember struct {
	PK          string `dynamodbav:"pk"`
	TeamID      string `dynamodbav:"teamId"`
	AttendantID string `dynamodbav:"attendantId"`
	TenantID    string `dynamodbav:"tenantId"`
}
