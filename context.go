package goIdentity

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Issue falls back to
// it when Credentials.IP is empty, and every audit event records it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
