package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"
)

type contextKey string

const claimsKey contextKey = "claims"

// Authenticate rejects requests without a bearer token (401) or with one that
// does not verify against secret (403).
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH", "Authentication failed: No token provided")
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}

			claims, err := ParseToken(rawToken, secret)
			if err != nil {
				log.LogSecurity("AUTH", "Authentication failed: Invalid token")
				utils.WriteError(w, http.StatusForbidden, "Invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize admits only callers whose role is listed. No roles admits everyone
// that passed Authenticate.
func Authorize(log *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := FromContext(r.Context())
			if claims == nil {
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			if len(roles) > 0 && !hasRole(roles, claims.Role) {
				log.LogSecurity("AUTH", fmt.Sprintf("Authorization failed: User %s not authorized", claims.UserID))
				utils.WriteError(w, http.StatusForbidden, "Unauthorized access", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the verified claims, or nil outside Authenticate.
func FromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if c := FromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
