package goIdentity

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/session"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override fields; Builder.Build validates the result.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	LoginGuard LoginGuardConfig
	Permission PermissionConfig
	Events     EventsConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token lifetimes and claim validation. Signing keys come
// from the jwt.KeySource passed to Builder.WithKeySource.
type JWTConfig struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig holds the Redis key prefixes for refresh records and the
// access-token blacklist.
type SessionConfig struct {
	RefreshPrefix   string
	BlacklistPrefix string
}

/*
====================================
LOGIN GUARD CONFIG
====================================
*/

// KeyScope selects what a login guard key is derived from.
type KeyScope = limiters.KeyScope

const (
	ScopeIP           = limiters.ScopeIP
	ScopeIPIdentifier = limiters.ScopeIPIdentifier
)

// LockoutTier locks a key for Duration once Threshold failures are counted
// inside the window.
type LockoutTier = limiters.LockoutTier

// LoginGuardConfig controls failure counting and escalating lockout.
type LoginGuardConfig struct {
	Window      time.Duration
	Tiers       []LockoutTier
	KeyScope    KeyScope
	CountPrefix string
	LockPrefix  string
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls permission resolution and role administration.
type PermissionConfig struct {
	// ExpandHierarchy makes resolved roles include every role reachable
	// through role includes.
	ExpandHierarchy bool
	// ProtectedRoles can never be revoked, in addition to catalog system roles.
	ProtectedRoles []string
	// CatalogCacheSize and CatalogCacheTTL enable the read-through catalog
	// cache when both are > 0.
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration
}

// EventsConfig controls the Redis pub/sub event publisher used when no
// publisher is supplied to the builder.
type EventsConfig struct {
	Enabled       bool
	ChannelPrefix string
}

// AuditConfig controls the async auth-event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
			Leeway:       0,
			MaxFutureIAT: 10 * time.Minute,
		},
		Session: SessionConfig{
			RefreshPrefix:   session.DefaultRefreshPrefix,
			BlacklistPrefix: session.DefaultBlacklistPrefix,
		},
		LoginGuard: LoginGuardConfig{
			Window:      limiters.DefaultLoginWindow,
			Tiers:       limiters.DefaultLockoutTiers(),
			KeyScope:    limiters.ScopeIP,
			CountPrefix: limiters.DefaultLoginCountPrefix,
			LockPrefix:  limiters.DefaultLoginLockPrefix,
		},
		Permission: PermissionConfig{
			ExpandHierarchy:  true,
			CatalogCacheSize: 1024,
			CatalogCacheTTL:  time.Minute,
		},
		Events: EventsConfig{
			Enabled:       false,
			ChannelPrefix: events.DefaultChannelPrefix,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig shortens token lifetimes and tightens lockout.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.MaxFutureIAT = time.Minute
	cfg.LoginGuard.KeyScope = limiters.ScopeIPIdentifier
	cfg.LoginGuard.Tiers = []limiters.LockoutTier{
		{Threshold: 3, Duration: 5 * time.Minute},
		{Threshold: 5, Duration: 30 * time.Minute},
		{Threshold: 10, Duration: 24 * time.Hour},
	}
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.LoginGuard.Tiers = slices.Clone(cfg.LoginGuard.Tiers)
	out.Permission.ProtectedRoles = slices.Clone(cfg.Permission.ProtectedRoles)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}

	// Session
	if c.Session.RefreshPrefix == "" {
		return errors.New("Session RefreshPrefix must not be empty")
	}
	if c.Session.BlacklistPrefix == "" {
		return errors.New("Session BlacklistPrefix must not be empty")
	}
	if c.Session.RefreshPrefix == c.Session.BlacklistPrefix {
		return errors.New("Session RefreshPrefix and BlacklistPrefix must differ")
	}

	// Login guard
	if c.LoginGuard.Window <= 0 {
		return errors.New("LoginGuard Window must be > 0")
	}
	if len(c.LoginGuard.Tiers) == 0 {
		return errors.New("LoginGuard Tiers must not be empty")
	}
	seen := make(map[int]struct{}, len(c.LoginGuard.Tiers))
	for _, tier := range c.LoginGuard.Tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 {
			return fmt.Errorf("LoginGuard tier %d/%s is invalid", tier.Threshold, tier.Duration)
		}
		if _, dup := seen[tier.Threshold]; dup {
			return fmt.Errorf("LoginGuard tier threshold %d is duplicated", tier.Threshold)
		}
		seen[tier.Threshold] = struct{}{}
	}
	switch c.LoginGuard.KeyScope {
	case limiters.ScopeIP, limiters.ScopeIPIdentifier:
	default:
		return errors.New("LoginGuard KeyScope must be 'ip' or 'ip_identifier'")
	}

	// Permission
	if c.Permission.CatalogCacheSize < 0 || c.Permission.CatalogCacheTTL < 0 {
		return errors.New("Permission catalog cache settings must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks a LintWarning.
type LintSeverity string

const (
	LintInfo LintSeverity = "info"
	LintWarn LintSeverity = "warn"
	LintHigh LintSeverity = "high"
)

// LintWarning is a valid-but-questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// AtLeast returns the warnings of severity s or higher.
func (r LintResult) AtLeast(s LintSeverity) LintResult {
	rank := map[LintSeverity]int{LintInfo: 0, LintWarn: 1, LintHigh: 2}
	var out LintResult
	for _, w := range r {
		if rank[w.Severity] >= rank[s] {
			out = append(out, w)
		}
	}
	return out
}

// Lint inspects a configuration that passes Validate for settings that are
// legal but weaken the deployment.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintWarn, "JWT leeway above 30s widens the replay window of expired tokens")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens live longer than 15m; revocation relies on the blacklist")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintInfo, "refresh tokens live longer than 30 days")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		add("claims_unscoped", LintInfo, "issuer or audience is empty; tokens are accepted by any verifier sharing the key")
	}
	if c.LoginGuard.KeyScope == limiters.ScopeIP {
		add("lockout_ip_only", LintInfo, "lockout is keyed by IP only; users behind one NAT share a lock")
	}
	if maxTier := maxLockout(c.LoginGuard.Tiers); maxTier < time.Minute {
		add("lockout_short", LintHigh, "the longest lockout is under one minute")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "auth events are not dispatched")
	}
	return ws
}

func maxLockout(tiers []limiters.LockoutTier) time.Duration {
	var out time.Duration
	for _, t := range tiers {
		out = max(out, t.Duration)
	}
	return out
}

func (c *Config) jwtConfig(keys jwt.KeySource) jwt.Config {
	return jwt.Config{
		AccessTTL:    c.JWT.AccessTTL,
		RefreshTTL:   c.JWT.RefreshTTL,
		Issuer:       c.JWT.Issuer,
		Audience:     c.JWT.Audience,
		Leeway:       c.JWT.Leeway,
		MaxFutureIAT: c.JWT.MaxFutureIAT,
		Keys:         keys,
	}
}
