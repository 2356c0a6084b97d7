package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	TenantHeader = "X-Tenant-Id"
	UserHeader   = "X-User-Id"
	RoleHeader   = "X-Role"
)

// RequireTenant verifies the bearer token and stamps the tenant headers that
// downstream handlers read, overwriting anything the client sent.
func RequireTenant(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := ParseAndVerifyHS256(strings.TrimSpace(token), secret, time.Now())
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			r.Header.Set(TenantHeader, claims.TenantID)
			r.Header.Set(UserHeader, claims.Sub)
			r.Header.Set(RoleHeader, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}
