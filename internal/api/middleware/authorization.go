package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	internaljwt "chat-routing-backend/internal/jwt"

	"github.com/golang-jwt/jwt"
)

type identityKey struct{}

// ValidateJWTMiddleware accepts a bearer token minted for any of roles and
// stores its subject in the request context.
func ValidateJWTMiddleware(roles ...internaljwt.Role) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var (
				claims jwt.MapClaims
				err    error
			)
			for _, role := range roles {
				claims, err = internaljwt.ParseToken(tokenString, role)
				if err == nil {
					break
				}
			}
			if err != nil || claims == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			user := internaljwt.UserFromClaims(claims)
			next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, user)))
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// IdentityFromContext returns the token subject set by ValidateJWTMiddleware.
func IdentityFromContext(ctx context.Context) (internaljwt.User, bool) {
	user, ok := ctx.Value(identityKey{}).(internaljwt.User)
	return user, ok
}

var ValidateUserJWT = ValidateJWTMiddleware(internaljwt.RoleUser)
var ValidateServiceJWT = ValidateJWTMiddleware(internaljwt.RoleService)
var ValidateAnyJWT = ValidateJWTMiddleware(internaljwt.RoleUser, internaljwt.RoleService)
