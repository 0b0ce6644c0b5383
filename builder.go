package goIdentity

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
)

// PermissionStore is a single backend serving every permission collaborator,
// such as store/memory or store/postgres.
type PermissionStore interface {
	permission.Catalog
	permission.IncludeWriter
	permission.AssignmentStore
	permission.MembershipStore
}

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	log    logrus.FieldLogger
	now    func() time.Time

	keys      jwt.KeySource
	keyFile   string
	watchKeys bool

	users    UserDirectory
	verifier CredentialVerifier

	catalog     permission.Catalog
	assignments permission.AssignmentStore
	memberships permission.MembershipStore

	auditSink AuditSink
	auditLog  permission.AuditSink
	publisher permission.EventPublisher

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store for sessions, the blacklist, the login
// guard and, when enabled, event publishing. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKeySource sets where signing keys come from. Exactly one of
// WithKeySource and WithKeyFile is required.
func (b *Builder) WithKeySource(keys jwt.KeySource) *Builder {
	b.keys = keys
	return b
}

// WithKeyFile loads signing keys from a YAML key file. With watch set the
// file is reloaded whenever it changes; Engine.Close stops the watcher.
func (b *Builder) WithKeyFile(path string, watch bool) *Builder {
	b.keyFile = path
	b.watchKeys = watch
	return b
}

func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithPermissionStore wires one backend as catalog, include writer,
// assignment store and membership store.
func (b *Builder) WithPermissionStore(store PermissionStore) *Builder {
	b.catalog = store
	b.assignments = store
	b.memberships = store
	return b
}

// WithPermissionStores wires separate permission backends. Role includes
// can only be added when catalog also implements permission.IncludeWriter.
func (b *Builder) WithPermissionStores(catalog permission.Catalog, assignments permission.AssignmentStore, memberships permission.MembershipStore) *Builder {
	b.catalog = catalog
	b.assignments = assignments
	b.memberships = memberships
	return b
}

// WithAuditSink receives auth events through the async dispatcher. It has
// no effect unless Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithAuditLog sets the durable record store for role and membership
// mutations. Every successful mutation appends exactly one record. When
// unset, the permission store is used if it implements
// permission.AuditSink; otherwise Build fails.
func (b *Builder) WithAuditLog(sink permission.AuditSink) *Builder {
	b.auditLog = sink
	return b
}

// WithEventPublisher overrides the Redis publisher built from
// Config.Events.
func (b *Builder) WithEventPublisher(p permission.EventPublisher) *Builder {
	b.publisher = p
	return b
}

func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for token timestamps and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.keys != nil && b.keyFile != "" {
		return nil, errors.New("key source and key file are mutually exclusive")
	}
	if (b.catalog == nil) != (b.assignments == nil) || (b.catalog == nil) != (b.memberships == nil) {
		return nil, errors.New("permission catalog, assignment store and membership store must be set together")
	}
	auditLog := b.auditLog
	if b.catalog != nil && auditLog == nil {
		sink, ok := b.catalog.(permission.AuditSink)
		if !ok {
			return nil, errors.New("permission stores require an audit log")
		}
		auditLog = sink
	}

	log := b.log
	if log == nil {
		log = logrus.New()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		log:      log,
		metrics:  NewMetrics(cfg.Metrics),
		now:      now,
		users:    b.users,
		verifier: b.verifier,
	}

	// -------- SIGNING KEYS --------
	keys := b.keys
	if b.keyFile != "" {
		fks, err := jwt.NewFileKeySource(b.keyFile, log)
		if err != nil {
			return nil, err
		}
		if b.watchKeys {
			if err := fks.Watch(); err != nil {
				return nil, err
			}
		}
		engine.closers = append(engine.closers, fks)
		keys = fks
	}
	if keys == nil {
		return nil, jwt.ErrNoKeyRing
	}

	jwtCfg := cfg.jwtConfig(keys)
	jwtCfg.Now = now
	jm, err := jwt.NewManager(jwtCfg)
	if err != nil {
		closeAll(engine.closers)
		return nil, err
	}
	engine.jwt = jm

	// -------- SESSION STATE --------
	engine.sessions = session.NewStore(b.redis, cfg.Session.RefreshPrefix, cfg.JWT.RefreshTTL)
	engine.blacklist = session.NewBlacklist(b.redis, cfg.Session.BlacklistPrefix)

	guard, err := limiters.NewLoginGuard(b.redis, limiters.LoginGuardConfig{
		Window:      cfg.LoginGuard.Window,
		Tiers:       cfg.LoginGuard.Tiers,
		CountPrefix: cfg.LoginGuard.CountPrefix,
		LockPrefix:  cfg.LoginGuard.LockPrefix,
	})
	if err != nil {
		closeAll(engine.closers)
		return nil, err
	}
	engine.guard = guard

	// -------- PERMISSIONS --------
	if b.catalog != nil {
		catalog := b.catalog
		if cfg.Permission.CatalogCacheSize > 0 && cfg.Permission.CatalogCacheTTL > 0 {
			catalog = permission.NewCachedCatalog(b.catalog, cfg.Permission.CatalogCacheSize, cfg.Permission.CatalogCacheTTL)
		}

		engine.resolver = permission.NewResolver(catalog, b.assignments, b.memberships, permission.ResolverConfig{
			ExpandHierarchy: cfg.Permission.ExpandHierarchy,
			Now:             now,
		})

		publisher := b.publisher
		if publisher == nil && cfg.Events.Enabled {
			publisher = events.NewRedisPublisher(b.redis, cfg.Events.ChannelPrefix)
		}

		var includes permission.IncludeWriter = readOnlyIncludes{}
		if w, ok := b.catalog.(permission.IncludeWriter); ok {
			includes = w
		}

		admin := permission.NewAdmin(permission.AdminStores{
			Catalog:     catalog,
			Includes:    includes,
			Assignments: b.assignments,
			Memberships: b.memberships,
			Publisher:   publisher,
		}, permission.AdminConfig{
			ProtectedRoles: cfg.Permission.ProtectedRoles,
			Now:            now,
			Logger:         log,
		})
		engine.admin = permission.NewAuditedAdmin(admin, auditLog, now)
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(audit.Event) {
			engine.metricInc(MetricAuditDropped)
		},
	}, b.auditSink)

	engine.flows = flows.New(engine.flowDeps())

	for _, w := range cfg.Lint().AtLeast(LintWarn) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	b.built = true

	return engine, nil
}

// readOnlyIncludes stands in for a catalog without an include writer.
type readOnlyIncludes struct{}

func (readOnlyIncludes) AddIncludeIfAcyclic(context.Context, string, string) (bool, error) {
	return false, errReadOnlyCatalog
}

var errReadOnlyCatalog = errors.New("permission catalog does not accept role includes")

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
