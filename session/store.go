package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when a user has no stored refresh token.
var ErrSessionNotFound = errors.New("session not found")

// DefaultRefreshPrefix is the key namespace for refresh-token records.
const DefaultRefreshPrefix = "refresh_token"

const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store keeps one refresh token per user with a fixed TTL.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a [Store]. ttl is applied on every Save and Rotate.
func NewStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultRefreshPrefix
	}
	return &Store{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

// TTL returns the lifetime applied to stored refresh tokens.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Save upserts the user's refresh token and resets its TTL.
//
//	Performance: 1 Redis SET.
func (s *Store) Save(ctx context.Context, userID, token string) error {
	if err := s.redis.Set(ctx, s.key(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored refresh token or [ErrSessionNotFound].
func (s *Store) Get(ctx context.Context, userID string) (string, error) {
	token, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, nil
}

// Delete removes the user's refresh token. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Validate reports whether token equals the stored refresh token.
// A user with nothing stored validates as false.
func (s *Store) Validate(ctx context.Context, userID, token string) (bool, error) {
	stored, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

// Rotate replaces oldToken with newToken only if oldToken is what is stored
// right now, and resets the TTL. It is one script round trip, so of several
// concurrent calls with the same oldToken exactly one returns true.
//
// A false result is not retried here. It may indicate replay of a
// superseded token.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) Rotate(ctx context.Context, userID, oldToken, newToken string) (bool, error) {
	res, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		oldToken,
		newToken,
		s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}
