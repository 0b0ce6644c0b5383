package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultBlacklistPrefix is the key namespace for revoked access tokens.
const DefaultBlacklistPrefix = "blacklist"

// Blacklist records revoked access tokens until they would have expired anyway.
//
// Keys hold a plain (unkeyed) SHA-256 of the token, never the token itself.
type Blacklist struct {
	redis  redis.UniversalClient
	prefix string
}

// NewBlacklist creates a [Blacklist].
func NewBlacklist(rdb redis.UniversalClient, prefix string) *Blacklist {
	if prefix == "" {
		prefix = DefaultBlacklistPrefix
	}
	return &Blacklist{redis: rdb, prefix: prefix}
}

func (b *Blacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return b.prefix + ":" + hex.EncodeToString(sum[:])
}

// Add blacklists token for remaining. A token with no remaining life is
// already unusable, so remaining <= 0 writes nothing.
func (b *Blacklist) Add(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, b.key(token), "1", remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether token has an unexpired blacklist entry.
func (b *Blacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
