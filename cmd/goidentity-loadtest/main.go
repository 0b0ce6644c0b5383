// Command goidentity-loadtest drives login, validate, refresh and permission
// resolution against a real engine and prints latency percentiles.
//
// Settings are read from flags, falling back to environment variables and an
// optional .env file:
//
//	GOIDENTITY_REDIS_ADDR      redis address; miniredis when empty
//	GOIDENTITY_POSTGRES_DSN    permission store; in-memory when empty
//	GOIDENTITY_SIGNING_SECRET  HS256 secret; random when empty
//	GOIDENTITY_KEY_FILE        YAML key file, overrides the secret
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
)

type options struct {
	users       int
	concurrency int
	ops         int
	rps         float64
	redisAddr   string
	postgresDSN string
	secret      string
	keyFile     string
	verbose     bool
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn("could not load .env")
	}

	opts := options{}
	flag.IntVar(&opts.users, "users", 1000, "number of users to seed")
	flag.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	flag.IntVar(&opts.ops, "ops", 50000, "operations per phase")
	flag.Float64Var(&opts.rps, "rps", 0, "request rate cap per phase; 0 is unlimited")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("GOIDENTITY_REDIS_ADDR"), "redis address; miniredis when empty")
	flag.StringVar(&opts.postgresDSN, "postgres-dsn", os.Getenv("GOIDENTITY_POSTGRES_DSN"), "postgres DSN for the permission store")
	flag.StringVar(&opts.secret, "secret", os.Getenv("GOIDENTITY_SIGNING_SECRET"), "HS256 signing secret")
	flag.StringVar(&opts.keyFile, "key-file", os.Getenv("GOIDENTITY_KEY_FILE"), "YAML signing key file")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, opts); err != nil {
		log.WithError(err).Error("load test failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logrus.Logger, opts options) error {
	client, cleanup, err := openRedis(log, opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	perms, closePerms, err := openPermissionStore(ctx, log, opts.postgresDSN)
	if err != nil {
		return err
	}
	defer closePerms()

	users, err := seedUsers(password.Params{Memory: 8 * 1024, Time: 1, Threads: 1}, opts.users)
	if err != nil {
		return err
	}

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.Issuer = "goidentity-loadtest"
	cfg.JWT.Audience = "goidentity-loadtest"
	cfg.LoginGuard.KeyScope = goIdentity.ScopeIPIdentifier
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	b := goIdentity.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(users).
		WithCredentialVerifier(password.Verifier{}).
		WithPermissionStore(perms).
		WithAuditLog(perms).
		WithLogger(log)
	if opts.keyFile != "" {
		b.WithKeyFile(opts.keyFile, false)
	} else {
		keys, err := staticKeys(opts.secret)
		if err != nil {
			return err
		}
		b.WithKeySource(keys)
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := assignRoles(ctx, engine, users.ids()); err != nil {
		return err
	}

	var limiter *rate.Limiter
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), opts.concurrency)
	}
	r := &runner{
		engine:      engine,
		users:       users,
		concurrency: opts.concurrency,
		limiter:     limiter,
	}

	log.WithFields(logrus.Fields{
		"users":       opts.users,
		"concurrency": opts.concurrency,
		"ops":         opts.ops,
		"rps":         opts.rps,
	}).Info("starting phases")

	results := []struct {
		name string
		run  func(context.Context, int) phaseStats
	}{
		{"issue", r.issuePhase},
		{"validate", r.validatePhase},
		{"refresh", r.refreshPhase},
		{"resolve", r.resolvePhase},
	}

	fmt.Println("---- results ----")
	for _, phase := range results {
		if ctx.Err() != nil {
			break
		}
		printStats(phase.name, phase.run(ctx, opts.ops))
	}

	snap := engine.MetricsSnapshot()
	log.WithFields(logrus.Fields{
		"login_success":  snap.Counters[goIdentity.MetricLoginSuccess],
		"refresh_reuse":  snap.Counters[goIdentity.MetricRefreshReuseDetected],
		"token_rejected": snap.Counters[goIdentity.MetricTokenRejected],
	}).Info("engine counters")
	return nil
}

func openRedis(log logrus.FieldLogger, addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		log.WithField("addr", addr).Info("using redis")
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	log.WithField("addr", mr.Addr()).Info("using miniredis")
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func staticKeys(secret string) (jwt.KeySource, error) {
	raw := []byte(secret)
	if len(raw) == 0 {
		raw = make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
	}
	ring, err := jwt.NewKeyRing(jwt.MethodHS256, "loadtest", jwt.SigningKey{
		ID:          "loadtest",
		Secret:      raw,
		ActivatedAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		return nil, err
	}
	return jwt.NewStaticKeySource(ring), nil
}
