package middleware

import (
	"net/http"

	"github.com/supermandi/api/internal/auth"
)

// AdminAuth guards the operator dashboard surface with the x-admin-token
// header. When no admin token was configured the surface stays disabled.
func AdminAuth(verifier *auth.AdminVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "admin_disabled"})
				return
			}
			if !verifier.Verify(r.Header.Get("x-admin-token")) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
