package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*goIdentity.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*goIdentity.Claims)
	return c, ok
}

// Guard validates the bearer access token and stores its claims in the
// request context. The client IP is attached for audit events. A backend
// outage answers 503; every other rejection answers 401.
func Guard(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goIdentity.WithClientIP(r.Context(), ClientIP(r))
			claims, err := engine.Validate(ctx, token)
			if err != nil {
				if errors.Is(err, goIdentity.ErrRedisUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored; put a trusted proxy in front that rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
