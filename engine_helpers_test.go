package goIdentity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store/memory"
)

const (
	testIP       = "1.2.3.4"
	testPassword = "correct-password-123"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeDirectory stores users by id and identifier. PasswordHash holds the
// plain password; plainVerifier compares it directly.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]UserRecord
	err   error
}

func newFakeDirectory(users ...UserRecord) *fakeDirectory {
	d := &fakeDirectory{users: map[string]UserRecord{}}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

func (d *fakeDirectory) FindByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return UserRecord{}, d.err
	}
	for _, u := range d.users {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (d *fakeDirectory) FindByID(_ context.Context, userID string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return UserRecord{}, d.err
	}
	u, ok := d.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) remove(userID string) {
	d.mu.Lock()
	delete(d.users, userID)
	d.mu.Unlock()
}

func (d *fakeDirectory) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

var plainVerifier = CredentialVerifierFunc(func(_ context.Context, user UserRecord, password string) (bool, error) {
	return user.PasswordHash == password, nil
})

func alice() UserRecord {
	return UserRecord{
		UserID:       "u1",
		Identifier:   "alice@example.com",
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: testPassword,
		Roles:        []string{"ROLE_USER"},
	}
}

func testKeySource(t testing.TB, activated time.Time, expires *time.Time) jwt.KeySource {
	t.Helper()

	ring, err := jwt.NewKeyRing(jwt.MethodHS256, "k1", jwt.SigningKey{
		ID:          "k1",
		Secret:      []byte("engine-test-signing-secret-material"),
		ActivatedAt: activated,
		ExpiresAt:   expires,
	})
	if err != nil {
		t.Fatalf("key ring: %v", err)
	}
	return jwt.NewStaticKeySource(ring)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Issuer = "goidentity-test"
	cfg.JWT.Audience = "goidentity-test"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *testClock
	users *fakeDirectory
	store *memory.Store
	hook  *test.Hook
}

type testOption func(*Builder, *testEngine)

// withPermissionStore wires a memory store seeded with ROLE_USER and an
// active assignment of it to u1.
func withPermissionStore() testOption {
	return func(b *Builder, te *testEngine) {
		te.store = memory.New()
		te.store.PutRole(permission.Role{Key: "ROLE_USER", DisplayName: "User"}, "profile.read")
		_ = te.store.SaveAssignment(context.Background(), permission.RoleAssignment{
			UserID:     "u1",
			RoleKey:    "ROLE_USER",
			AssignedAt: te.clock.Now(),
		})
		b.WithPermissionStore(te.store).WithAuditLog(te.store)
	}
}

func newTestEngine(t testing.TB, cfg Config, opts ...testOption) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	te := &testEngine{
		mr:    mr,
		rdb:   rdb,
		clock: clock,
		users: newFakeDirectory(alice()),
		hook:  hook,
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithKeySource(testKeySource(t, clock.Now().Add(-time.Hour), nil)).
		WithUserDirectory(te.users).
		WithCredentialVerifier(plainVerifier).
		WithLogger(logger).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b, te)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	te.Engine = engine
	return te
}

func (te *testEngine) login(t testing.TB) *TokenPair {
	t.Helper()

	pair, err := te.Issue(context.Background(), Credentials{
		Identifier: "alice@example.com",
		Password:   testPassword,
		IP:         testIP,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair
}
