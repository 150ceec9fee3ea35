package jwt

import (
	"sync"

	"chat-routing-backend/internal/env"
)

const (
	RoleUser Role = iota
	RoleService
)

var (
	secretsMu   sync.RWMutex
	roleSecrets = map[Role]string{}
	roleEnvKeys = map[Role]string{
		RoleUser:    env.UserSecretKey,
		RoleService: env.ServiceSecretKey,
	}
)

// SetRoleSecret overrides the signing secret for role. An empty secret
// restores the environment value.
func SetRoleSecret(role Role, secret string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if secret == "" {
		delete(roleSecrets, role)
		return
	}
	roleSecrets[role] = secret
}

func secretFor(role Role) (string, bool) {
	secretsMu.RLock()
	secret, ok := roleSecrets[role]
	secretsMu.RUnlock()
	if ok {
		return secret, true
	}
	key, known := roleEnvKeys[role]
	if !known {
		return "", false
	}
	secret = env.Get(key)
	return secret, secret != ""
}
