package rate

import "errors"

var (
	// ErrRedisUnavailable wraps Redis failures from counter operations.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidWindow is returned when a counter is built without a positive window.
	ErrInvalidWindow = errors.New("invalid counter window")
)
