//go:build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store/memory"
)

// redisMode is one Redis backend the suite runs against. miniredis is
// always present; real backends are added from the environment:
//
//	REDIS_ADDR                                   standalone
//	REDIS_CLUSTER_ADDRS                          cluster, comma separated
//	REDIS_SENTINEL_ADDRS, REDIS_SENTINEL_MASTER  sentinel
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

func redisModes(t *testing.T) []redisMode {
	t.Helper()

	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone",
			setup: func(t *testing.T) redis.UniversalClient {
				return connect(t, redis.NewClient(&redis.Options{Addr: addr}), true)
			},
		})
	}
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				return connect(t, redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)}), false)
			},
		})
	}
	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) redis.UniversalClient {
				return connect(t, redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				}), true)
			},
		})
	}
	return modes
}

func connect(t *testing.T, rdb redis.UniversalClient, flush bool) redis.UniversalClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	if flush {
		rdb.FlushDB(context.Background())
	}
	t.Cleanup(func() {
		if flush {
			rdb.FlushDB(context.Background())
		}
		_ = rdb.Close()
	})
	return rdb
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

type directory map[string]goIdentity.UserRecord

func (d directory) FindByIdentifier(_ context.Context, identifier string) (goIdentity.UserRecord, error) {
	for _, u := range d {
		if u.Identifier == identifier {
			return u, nil
		}
	}
	return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
}

func (d directory) FindByID(_ context.Context, userID string) (goIdentity.UserRecord, error) {
	u, ok := d[userID]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u, nil
}

const integrationPassword = "integration-password"

// newEngine builds an engine with a unique key namespace so runs against a
// shared Redis do not collide.
func newEngine(t *testing.T, rdb redis.UniversalClient) *goIdentity.Engine {
	t.Helper()

	ring, err := jwt.NewKeyRing(jwt.MethodHS256, "it", jwt.SigningKey{
		ID:          "it",
		Secret:      []byte("integration-signing-secret-value"),
		ActivatedAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("key ring: %v", err)
	}

	store := memory.New()
	store.PutRole(permission.Role{Key: "ROLE_USER"}, "profile.read")
	_ = store.SaveAssignment(context.Background(), permission.RoleAssignment{
		UserID:     "u1",
		RoleKey:    "ROLE_USER",
		AssignedAt: time.Now(),
	})

	ns := strings.ReplaceAll(t.Name(), "/", ":") + ":" + time.Now().Format("150405.000000")
	cfg := goIdentity.DefaultConfig()
	cfg.Session.RefreshPrefix = ns + ":refresh_token"
	cfg.Session.BlacklistPrefix = ns + ":blacklist"
	cfg.LoginGuard.CountPrefix = ns + ":login_count"
	cfg.LoginGuard.LockPrefix = ns + ":login_lock"

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithKeySource(jwt.NewStaticKeySource(ring)).
		WithUserDirectory(directory{"u1": {
			UserID:       "u1",
			Identifier:   "alice",
			PasswordHash: integrationPassword,
		}}).
		WithCredentialVerifier(goIdentity.CredentialVerifierFunc(func(_ context.Context, u goIdentity.UserRecord, pw string) (bool, error) {
			return u.PasswordHash == pw, nil
		})).
		WithPermissionStore(store).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}
