package model

import (
	"errors"
	"fmt"
)

const (
	TenantsTable           = "Tenants"
	AttendantsTable        = "Attendants"
	RoomsTable             = "Rooms"
	MessagesTable          = "Messages"
	TeamsTable             = "Teams"
	TeamMembersTable       = "TeamMembers"
	ServiceCategoriesTable = "ServiceCategories"
	CategoryRoutingTable   = "CategoryRouting"
	BusinessHoursTable     = "BusinessHours"
	AutoRulesTable         = "AutoRules"
)

var (
	ErrNotFound        = errors.New("record store: not found")
	ErrConditionFailed = errors.New("record store: condition failed")
)

type TenantItem struct {
	TenantID string                 `dynamodbav:"tenantId"`
	Name     string                 `dynamodbav:"name"`
	Plan     string                 `dynamodbav:"plan"`
	Seats    int                    `dynamodbav:"seats"`
	Timezone string                 `dynamodbav:"timezone,omitempty"`
	Settings map[string]interface{} `dynamodbav:"settings,omitempty"`
	Created  string                 `dynamodbav:"createdAt"`
}

func TenantScopedPK(tenantID, entityID string) string {
	return fmt.Sprintf("%s#%s", tenantID, entityID)
}
