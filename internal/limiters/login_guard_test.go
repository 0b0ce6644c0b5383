package limiters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLoginGuardTest(t testing.TB, cfg LoginGuardConfig) (*LoginGuard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	g, err := NewLoginGuard(rdb, cfg)
	if err != nil {
		t.Fatalf("new login guard: %v", err)
	}
	return g, mr
}

func TestLoginGuardThreeFailuresLocks(t *testing.T) {
	g, _ := newLoginGuardTest(t, LoginGuardConfig{})
	ctx := context.Background()
	key := "1.2.3.4:alice"

	for i := 0; i < 3; i++ {
		if _, err := g.RecordFailure(ctx, key); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
	}

	blocked, err := g.IsBlocked(ctx, key)
	if err != nil || !blocked {
		t.Fatalf("expected blocked after 3 failures, got %v (%v)", blocked, err)
	}
	remaining, err := g.RemainingLockTime(ctx, key)
	if err != nil {
		t.Fatalf("remaining lock time: %v", err)
	}
	if remaining <= 0 || remaining > 60*time.Second {
		t.Fatalf("expected 0 < remaining <= 60s, got %v", remaining)
	}
}

func TestLoginGuardEscalation(t *testing.T) {
	g, _ := newLoginGuardTest(t, LoginGuardConfig{})
	ctx := context.Background()
	key := "10.0.0.1"

	limits := map[int]time.Duration{3: time.Minute, 5: 5 * time.Minute, 10: 30 * time.Minute}
	var prev time.Duration
	for n := 1; n <= 10; n++ {
		state, err := g.RecordFailure(ctx, key)
		if err != nil {
			t.Fatalf("record failure %d: %v", n, err)
		}
		if state.Failures != n {
			t.Fatalf("expected failures=%d, got %d", n, state.Failures)
		}

		blocked, _ := g.IsBlocked(ctx, key)
		if n < 3 {
			if blocked || state.Locked {
				t.Fatalf("failure %d: expected not blocked", n)
			}
			continue
		}
		if !blocked || !state.Locked {
			t.Fatalf("failure %d: expected blocked", n)
		}

		remaining, _ := g.RemainingLockTime(ctx, key)
		if limit, ok := limits[n]; ok {
			if remaining > limit || remaining <= prev {
				t.Fatalf("failure %d: expected %v < remaining <= %v, got %v", n, prev, limit, remaining)
			}
		}
		if remaining < prev {
			t.Fatalf("failure %d: lock shrank from %v to %v", n, prev, remaining)
		}
		prev = remaining
	}

	if count, _ := g.AttemptCount(ctx, key); count != 10 {
		t.Fatalf("expected attempt count 10, got %d", count)
	}
}

func TestLoginGuardLockNeverShrinks(t *testing.T) {
	g, mr := newLoginGuardTest(t, LoginGuardConfig{
		Tiers: []LockoutTier{
			{Threshold: 2, Duration: 10 * time.Minute},
			{Threshold: 1, Duration: time.Minute},
		},
	})
	ctx := context.Background()

	if _, err := g.RecordFailure(ctx, "k"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := g.RecordFailure(ctx, "k"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if ttl := mr.TTL("login_attempt:lock:k"); ttl != 10*time.Minute {
		t.Fatalf("expected 10m lock, got %v", ttl)
	}

	// Counter window closes while the long lock still runs.
	mr.FastForward(31 * time.Minute)
	if err := mr.Set("login_attempt:lock:k", "1"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	mr.SetTTL("login_attempt:lock:k", 8*time.Minute)

	state, err := g.RecordFailure(ctx, "k")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if state.Failures != 1 {
		t.Fatalf("expected fresh window, got %d failures", state.Failures)
	}
	if ttl := mr.TTL("login_attempt:lock:k"); ttl != 8*time.Minute {
		t.Fatalf("expected 1m tier to leave the 8m lock alone, got %v", ttl)
	}
}

func TestLoginGuardSuccessResets(t *testing.T) {
	g, mr := newLoginGuardTest(t, LoginGuardConfig{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := g.RecordFailure(ctx, "k"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := g.RecordSuccess(ctx, "k"); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if blocked, _ := g.IsBlocked(ctx, "k"); blocked {
		t.Fatal("expected lock cleared")
	}
	if count, _ := g.AttemptCount(ctx, "k"); count != 0 {
		t.Fatalf("expected count reset, got %d", count)
	}
	if remaining, _ := g.RemainingLockTime(ctx, "k"); remaining != 0 {
		t.Fatalf("expected no remaining lock, got %v", remaining)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys left, got %v", mr.Keys())
	}

	if err := g.RecordSuccess(ctx, "never-failed"); err != nil {
		t.Fatalf("record success on clean key: %v", err)
	}
}

func TestLoginGuardWindowExpiry(t *testing.T) {
	g, mr := newLoginGuardTest(t, LoginGuardConfig{Window: time.Minute})
	ctx := context.Background()

	_, _ = g.RecordFailure(ctx, "k")
	_, _ = g.RecordFailure(ctx, "k")
	if ttl := mr.TTL("login_attempt:count:k"); ttl != time.Minute {
		t.Fatalf("expected counter window 1m, got %v", ttl)
	}

	mr.FastForward(61 * time.Second)
	if count, _ := g.AttemptCount(ctx, "k"); count != 0 {
		t.Fatalf("expected window to expire, got %d", count)
	}
	state, _ := g.RecordFailure(ctx, "k")
	if state.Failures != 1 || state.Locked {
		t.Fatalf("expected fresh unlocked window, got %+v", state)
	}
}

func TestLoginGuardConcurrentFailuresCounted(t *testing.T) {
	g, _ := newLoginGuardTest(t, LoginGuardConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.RecordFailure(ctx, "k"); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	if count, _ := g.AttemptCount(ctx, "k"); count != 12 {
		t.Fatalf("expected 12 failures, got %d", count)
	}
	remaining, _ := g.RemainingLockTime(ctx, "k")
	if remaining <= 5*time.Minute || remaining > 30*time.Minute {
		t.Fatalf("expected top-tier lock, got %v", remaining)
	}
}

func TestLoginGuardRejectsInvalidTier(t *testing.T) {
	_, err := NewLoginGuard(nil, LoginGuardConfig{Tiers: []LockoutTier{{Threshold: 0, Duration: time.Minute}}})
	if !errors.Is(err, ErrInvalidLockoutTier) {
		t.Fatalf("expected ErrInvalidLockoutTier, got %v", err)
	}
}

func TestLoginKey(t *testing.T) {
	if got := LoginKey(ScopeIP, " 1.2.3.4 ", "Alice"); got != "1.2.3.4" {
		t.Fatalf("unexpected ip key %q", got)
	}
	if got := LoginKey(ScopeIPIdentifier, "1.2.3.4", " Alice "); got != "1.2.3.4:alice" {
		t.Fatalf("unexpected ip+identifier key %q", got)
	}
}

func TestLoginGuardNilSafe(t *testing.T) {
	var g *LoginGuard
	ctx := context.Background()
	if _, err := g.RecordFailure(ctx, "k"); err != nil {
		t.Fatalf("nil record failure: %v", err)
	}
	if blocked, err := g.IsBlocked(ctx, "k"); err != nil || blocked {
		t.Fatalf("nil guard must not block: %v %v", blocked, err)
	}
}
