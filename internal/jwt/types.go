package jwt

type Role int

// User is the subject a token is minted for. For RoleService tokens Id names
// the calling service and TenantID is empty.
type User struct {
	Id       string `json:"id"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}
