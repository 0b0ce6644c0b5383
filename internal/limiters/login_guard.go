package limiters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Defaults applied by NewLoginGuard for zero-value config fields.
const (
	DefaultLoginWindow      = 30 * time.Minute
	DefaultLoginCountPrefix = "login_attempt:count:"
	DefaultLoginLockPrefix  = "login_attempt:lock:"
)

var (
	// ErrLoginGuardUnavailable wraps Redis failures from the login guard.
	ErrLoginGuardUnavailable = errors.New("login guard unavailable")
	// ErrInvalidLockoutTier is returned for tiers without a positive threshold and duration.
	ErrInvalidLockoutTier = errors.New("invalid lockout tier")
)

// The lock only ever grows: a shorter tier crossing never shortens a longer
// lock that is already running.
const escalateLockScript = `
local want = tonumber(ARGV[1])
local current = redis.call("PTTL", KEYS[1])
if current < want then
  redis.call("SET", KEYS[1], "1", "PX", want)
  return want
end
return current
`

var escalateLockLua = redis.NewScript(escalateLockScript)

// KeyScope selects how login attempts are grouped.
type KeyScope string

const (
	// ScopeIP counts all failures from one client IP together.
	ScopeIP KeyScope = "ip"
	// ScopeIPIdentifier counts failures per (IP, identifier) pair.
	ScopeIPIdentifier KeyScope = "ip_identifier"
)

// LoginKey builds the guard key for a login attempt.
func LoginKey(scope KeyScope, ip, identifier string) string {
	ip = strings.TrimSpace(ip)
	if scope == ScopeIP {
		return ip
	}
	return ip + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

// LockoutTier locks a key for Duration once it has at least Threshold failures.
type LockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutTiers returns 3 → 1m, 5 → 5m, 10 → 30m.
func DefaultLockoutTiers() []LockoutTier {
	return []LockoutTier{
		{Threshold: 3, Duration: time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
		{Threshold: 10, Duration: 30 * time.Minute},
	}
}

// LoginGuardConfig holds the lockout policy.
type LoginGuardConfig struct {
	Window      time.Duration
	Tiers       []LockoutTier
	CountPrefix string
	LockPrefix  string
}

// AttemptState is the outcome of [LoginGuard.RecordFailure].
type AttemptState struct {
	Failures      int
	Locked        bool
	LockRemaining time.Duration
}

// LoginGuard counts failed logins per key and locks keys that cross the
// configured tiers. All state lives in Redis.
type LoginGuard struct {
	redis      redis.UniversalClient
	counter    *rate.Counter
	lockPrefix string
	tiers      []LockoutTier
}

// NewLoginGuard creates a [LoginGuard]. Zero-value fields in cfg fall back
// to a 30m window and [DefaultLockoutTiers].
func NewLoginGuard(redisClient redis.UniversalClient, cfg LoginGuardConfig) (*LoginGuard, error) {
	window := cfg.Window
	if window <= 0 {
		window = DefaultLoginWindow
	}
	countPrefix := cfg.CountPrefix
	if countPrefix == "" {
		countPrefix = DefaultLoginCountPrefix
	}
	lockPrefix := cfg.LockPrefix
	if lockPrefix == "" {
		lockPrefix = DefaultLoginLockPrefix
	}

	tiers := cfg.Tiers
	if len(tiers) == 0 {
		tiers = DefaultLockoutTiers()
	}
	tiers = append([]LockoutTier(nil), tiers...)
	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 {
			return nil, fmt.Errorf("%w: threshold=%d duration=%v", ErrInvalidLockoutTier, tier.Threshold, tier.Duration)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold > tiers[j].Threshold })

	counter, err := rate.NewCounter(redisClient, countPrefix, window)
	if err != nil {
		return nil, err
	}

	return &LoginGuard{
		redis:      redisClient,
		counter:    counter,
		lockPrefix: lockPrefix,
		tiers:      tiers,
	}, nil
}

func (g *LoginGuard) lockKey(key string) string {
	return g.lockPrefix + key
}

// tierFor returns the highest tier reached by failures.
func (g *LoginGuard) tierFor(failures int64) (LockoutTier, bool) {
	for _, tier := range g.tiers {
		if failures >= int64(tier.Threshold) {
			return tier, true
		}
	}
	return LockoutTier{}, false
}

// RecordFailure counts one failure for key and escalates its lock when a
// tier threshold is reached.
//
//	Performance: 1–2 Redis EVALSHA.
func (g *LoginGuard) RecordFailure(ctx context.Context, key string) (AttemptState, error) {
	if g == nil {
		return AttemptState{}, nil
	}

	count, err := g.counter.Hit(ctx, key)
	if err != nil {
		return AttemptState{}, fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}

	state := AttemptState{Failures: int(count)}
	tier, ok := g.tierFor(count)
	if !ok {
		return state, nil
	}

	remaining, err := escalateLockLua.Run(ctx, g.redis, []string{g.lockKey(key)}, tier.Duration.Milliseconds()).Int64()
	if err != nil {
		return state, fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}
	state.Locked = true
	state.LockRemaining = time.Duration(remaining) * time.Millisecond

	return state, nil
}

// RecordSuccess clears the failure counter and any lock for key.
func (g *LoginGuard) RecordSuccess(ctx context.Context, key string) error {
	if g == nil {
		return nil
	}
	if err := g.redis.Del(ctx, g.counter.Key(key), g.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}
	return nil
}

// IsBlocked reports whether key has an unexpired lock.
func (g *LoginGuard) IsBlocked(ctx context.Context, key string) (bool, error) {
	if g == nil {
		return false, nil
	}
	n, err := g.redis.Exists(ctx, g.lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}
	return n > 0, nil
}

// AttemptCount returns failures recorded in the current window.
func (g *LoginGuard) AttemptCount(ctx context.Context, key string) (int, error) {
	if g == nil {
		return 0, nil
	}
	count, err := g.counter.Count(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}
	return int(count), nil
}

// RemainingLockTime returns how long key stays locked, or zero.
func (g *LoginGuard) RemainingLockTime(ctx context.Context, key string) (time.Duration, error) {
	if g == nil {
		return 0, nil
	}
	ttl, err := g.redis.PTTL(ctx, g.lockKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLoginGuardUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
