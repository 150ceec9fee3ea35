package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// DefaultTTL applies when CreateToken is given no expiry.
const DefaultTTL = 15 * time.Minute

func appendRoleChar(token string, role Role) string {
	return token + expectedRoleChar(role)
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleUser:
		return "1"
	case RoleService:
		return "2"
	}
	return ""
}

func CreateToken(user User, role Role, validUntil int64) (string, error) {
	secret, ok := secretFor(role)
	if !ok {
		return "", fmt.Errorf("invalid role specified")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(DefaultTTL).Unix()
	}

	claims := jwt.MapClaims{
		"id":  user.Id,
		"exp": validUntil,
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}
	if user.TenantID != "" {
		claims["tenantId"] = user.TenantID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

// ParseToken validates the role suffix, the HMAC signature and the expiry.
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	suffix := expectedRoleChar(role)
	if suffix == "" || tokenString[len(tokenString)-1:] != suffix {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	secret, ok := secretFor(role)
	if !ok {
		return nil, fmt.Errorf("invalid role specified")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// UserFromClaims reads the subject back out of parsed claims.
func UserFromClaims(claims jwt.MapClaims) User {
	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	tenantID, _ := claims["tenantId"].(string)
	return User{Id: id, Email: email, TenantID: tenantID}
}
