package model

type ServiceCategory struct {
	CategoryID string `dynamodbav:"categoryId"`
	TenantID   string `dynamodbav:"tenantId"`
	Name       string `dynamodbav:"name"`
	IsDefault  bool   `dynamodbav:"isDefault"`
}

type AssignmentConfig struct {
	Enabled           bool `dynamodbav:"enabled"`
	OnlineOnly        bool `dynamodbav:"onlineOnly"`
	CapacityLimit     int  `dynamodbav:"capacityLimit"`
	AllowOverCapacity bool `dynamodbav:"allowOverCapacity"`
}

func CategoryRoutingPK(categoryID, teamID string) string {
	return TenantScopedPK(categoryID, teamID)
}

type CategoryRouting struct {
	PK         string           `dynamodbav:"pk"`
	CategoryID string           `dynamodbav:"categoryId"`
	TeamID     string           `dynamodbav:"teamId"`
	TenantID   string           `dynamodbav:"tenantId"`
	Position   int              `dynamodbav:"position"`
	Config     AssignmentConfig `dynamodbav:"config"`
}

// TeamRoute is one resolved routing row: a team linked to a category together
// with the assignment constraints for that link.
type TeamRoute struct {
	Team   Team
	Config AssignmentConfig
}

type BusinessHoursWindow struct {
	PK        string `dynamodbav:"pk"`
	WindowID  string `dynamodbav:"windowId"`
	TenantID  string `dynamodbav:"tenantId"`
	DayOfWeek int    `dynamodbav:"dayOfWeek"`
	StartTime string `dynamodbav:"startTime"`
	EndTime   string `dynamodbav:"endTime"`
	IsActive  bool   `dynamodbav:"isActive"`
}
