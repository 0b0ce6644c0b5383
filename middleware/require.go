package middleware

import (
	"net/http"
	"slices"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// RequireRole rejects requests whose token does not carry role. It must be
// mounted behind Guard.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(claims.Roles, role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission resolves the caller's current permissions and rejects
// the request unless permission is among them. Unlike RequireRole it sees
// grants and revocations made after the token was issued.
func RequirePermission(engine *goIdentity.Engine, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			view, err := engine.ResolvePermissions(r.Context(), claims.Subject)
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if !view.Has(permission) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
