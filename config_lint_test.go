package goIdentity

import (
	"slices"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/internal/limiters"
)

func lintCodes(mutate func(*Config)) []string {
	cfg := DefaultConfig()
	mutate(&cfg)
	return cfg.Lint().Codes()
}

func TestLintDefaultConfig(t *testing.T) {
	codes := lintCodes(func(*Config) {})
	want := []string{"claims_unscoped", "lockout_ip_only", "audit_disabled"}
	if !slices.Equal(codes, want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
}

func TestLintHighSecurityConfig(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.Issuer = "auth.example.com"
	cfg.JWT.Audience = "api.example.com"
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLintCodes(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"leeway_large", func(c *Config) { c.JWT.Leeway = time.Minute }},
		{"access_ttl_long", func(c *Config) { c.JWT.AccessTTL = time.Hour }},
		{"refresh_ttl_long", func(c *Config) { c.JWT.RefreshTTL = 60 * 24 * time.Hour }},
		{"claims_unscoped", func(c *Config) { c.JWT.Issuer = "auth.example.com" }},
		{"lockout_ip_only", func(c *Config) { c.LoginGuard.KeyScope = limiters.ScopeIP }},
		{"lockout_short", func(c *Config) {
			c.LoginGuard.Tiers = []limiters.LockoutTier{{Threshold: 3, Duration: 30 * time.Second}}
		}},
		{"audit_disabled", func(c *Config) { c.Audit.Enabled = false }},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			if codes := lintCodes(tc.mutate); !slices.Contains(codes, tc.code) {
				t.Fatalf("expected %s in %v", tc.code, codes)
			}
		})
	}
}

func TestLintBoundariesDoNotWarn(t *testing.T) {
	codes := lintCodes(func(c *Config) {
		c.JWT.Leeway = 30 * time.Second
		c.JWT.AccessTTL = 15 * time.Minute
		c.JWT.RefreshTTL = 30 * 24 * time.Hour
		c.LoginGuard.Tiers = []limiters.LockoutTier{{Threshold: 3, Duration: time.Minute}}
	})
	for _, code := range []string{"leeway_large", "access_ttl_long", "refresh_ttl_long", "lockout_short"} {
		if slices.Contains(codes, code) {
			t.Fatalf("unexpected %s at boundary: %v", code, codes)
		}
	}
}

func TestLintAtLeast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = time.Hour
	cfg.LoginGuard.Tiers = []limiters.LockoutTier{{Threshold: 3, Duration: 10 * time.Second}}
	ws := cfg.Lint()

	high := ws.AtLeast(LintHigh).Codes()
	if !slices.Equal(high, []string{"lockout_short"}) {
		t.Fatalf("expected only lockout_short at high, got %v", high)
	}

	warn := ws.AtLeast(LintWarn).Codes()
	if !slices.Equal(warn, []string{"access_ttl_long", "lockout_short", "audit_disabled"}) {
		t.Fatalf("unexpected warn-or-higher set %v", warn)
	}

	if len(ws.AtLeast(LintInfo)) != len(ws) {
		t.Fatal("AtLeast(info) must return every warning")
	}
}

func TestLintWarningsHaveMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.Leeway = time.Minute
	for _, w := range cfg.Lint() {
		if w.Message == "" || w.Severity == "" {
			t.Fatalf("incomplete warning %+v", w)
		}
	}
}
