package goIdentity

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

type swapKeySource struct {
	ring atomic.Pointer[jwt.KeyRing]
}

func (s *swapKeySource) KeyRing() *jwt.KeyRing { return s.ring.Load() }

func TestSecurityInvariantRetiredKeyGraceWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newTestClock()
	start := clock.Now()

	k1 := jwt.SigningKey{ID: "k1", Secret: []byte("first-signing-secret"), ActivatedAt: start.Add(-time.Hour)}
	ring1, err := jwt.NewKeyRing(jwt.MethodHS256, "k1", k1)
	if err != nil {
		t.Fatalf("ring1: %v", err)
	}
	src := &swapKeySource{}
	src.ring.Store(ring1)

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithKeySource(src).
		WithUserDirectory(newFakeDirectory(alice())).
		WithCredentialVerifier(plainVerifier).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	pair, err := engine.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: testPassword, IP: testIP})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Rotate: k2 becomes current, k1 stays verifiable for ten minutes.
	retire := start.Add(10 * time.Minute)
	k1.ExpiresAt = &retire
	k2 := jwt.SigningKey{ID: "k2", Secret: []byte("second-signing-secret"), ActivatedAt: start}
	ring2, err := jwt.NewKeyRing(jwt.MethodHS256, "k2", k1, k2)
	if err != nil {
		t.Fatalf("ring2: %v", err)
	}
	src.ring.Store(ring2)

	if _, err := engine.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("retired key inside grace window: %v", err)
	}

	clock.Advance(10 * time.Minute)
	_, err = engine.Validate(ctx, pair.AccessToken)
	if !errors.Is(err, ErrKeyExpired) || !IsKeyConfigurationError(err) {
		t.Fatalf("expected ErrKeyExpired after retirement, got %v", err)
	}
	if got := engine.Metrics().Value(MetricKeyConfigError); got != 1 {
		t.Fatalf("expected key config metric, got %d", got)
	}

	fresh, err := engine.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: testPassword, IP: testIP})
	if err != nil {
		t.Fatalf("issue with rotated key: %v", err)
	}
	if _, err := engine.Validate(ctx, fresh.AccessToken); err != nil {
		t.Fatalf("validate token signed by k2: %v", err)
	}
}

func TestSecurityInvariantRefreshTokenIsNotAnAccessToken(t *testing.T) {
	te := newTestEngine(t, testConfig())
	pair := te.login(t)

	if _, err := te.Validate(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestSecurityInvariantForeignAudienceRejected(t *testing.T) {
	te := newTestEngine(t, testConfig())
	pair := te.login(t)

	cfg := testConfig()
	cfg.JWT.Audience = "another-service"
	other := newTestEngine(t, cfg)

	if _, err := other.Validate(context.Background(), pair.AccessToken); err == nil {
		t.Fatal("token minted for another audience must be rejected")
	}
}

func TestSecurityInvariantBlacklistStoresNoRawToken(t *testing.T) {
	te := newTestEngine(t, testConfig())
	pair := te.login(t)

	if err := te.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	found := false
	for _, k := range te.mr.Keys() {
		if strings.Contains(k, pair.AccessToken) {
			t.Fatalf("raw token used as key %q", k)
		}
		if strings.HasPrefix(k, "blacklist:") {
			found = true
			if v, _ := te.mr.Get(k); strings.Contains(v, pair.AccessToken) {
				t.Fatal("raw token stored as blacklist value")
			}
		}
	}
	if !found {
		t.Fatal("expected a blacklist entry")
	}
}

func TestSecurityInvariantLockedKeyDoesNotVerifyPassword(t *testing.T) {
	_, rdb := newTestRedis(t)
	var verifies atomic.Int32
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithKeySource(testKeySource(t, time.Now().Add(-time.Hour), nil)).
		WithUserDirectory(newFakeDirectory(alice())).
		WithCredentialVerifier(CredentialVerifierFunc(func(ctx context.Context, u UserRecord, p string) (bool, error) {
			verifies.Add(1)
			return plainVerifier(ctx, u, p)
		})).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = engine.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: "wrong", IP: testIP})
	}
	before := verifies.Load()

	_, err = engine.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: testPassword, IP: testIP})
	if !errors.Is(err, ErrLoginLocked) {
		t.Fatalf("expected ErrLoginLocked, got %v", err)
	}
	if verifies.Load() != before {
		t.Fatal("credentials were verified for a locked key")
	}
}
