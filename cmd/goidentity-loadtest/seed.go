package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/MrEthical07/goIdentity/store/postgres"
)

const (
	loadtestPassword = "loadtest-password-1"
	loadtestActor    = "loadtest"
)

// directory is a read-only user table built before the run.
type directory struct {
	byID         map[string]goIdentity.UserRecord
	byIdentifier map[string]goIdentity.UserRecord
	order        []string
}

func (d *directory) FindByIdentifier(_ context.Context, identifier string) (goIdentity.UserRecord, error) {
	u, ok := d.byIdentifier[identifier]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u, nil
}

func (d *directory) FindByID(_ context.Context, userID string) (goIdentity.UserRecord, error) {
	u, ok := d.byID[userID]
	if !ok {
		return goIdentity.UserRecord{}, goIdentity.ErrUserNotFound
	}
	return u, nil
}

func (d *directory) ids() []string {
	return d.order
}

func (d *directory) identifier(i int) string {
	return d.byID[d.order[i%len(d.order)]].Identifier
}

// seedUsers hashes one password and shares it across every user.
func seedUsers(params password.Params, n int) (*directory, error) {
	hash, err := password.Hash(loadtestPassword, params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d := &directory{
		byID:         make(map[string]goIdentity.UserRecord, n),
		byIdentifier: make(map[string]goIdentity.UserRecord, n),
		order:        make([]string, 0, n),
	}
	for i := 0; i < n; i++ {
		u := goIdentity.UserRecord{
			UserID:       fmt.Sprintf("user-%d", i),
			Identifier:   fmt.Sprintf("user-%d@loadtest.local", i),
			PasswordHash: hash,
		}
		d.byID[u.UserID] = u
		d.byIdentifier[u.Identifier] = u
		d.order = append(d.order, u.UserID)
	}
	return d, nil
}

type permissionStore interface {
	goIdentity.PermissionStore
	permission.AuditSink
}

func openPermissionStore(ctx context.Context, log logrus.FieldLogger, dsn string) (permissionStore, func(), error) {
	if dsn == "" {
		store := memory.New()
		store.PutRole(permission.Role{Key: "ROLE_BASE", DisplayName: "Base"}, "profile.read")
		store.PutRole(permission.Role{Key: "ROLE_MEMBER", DisplayName: "Member"}, "content.read", "content.comment")
		store.PutTier(permission.MembershipTier{Group: "plan", TierKey: "pro", SortOrder: 1}, "export.csv")
		log.Info("using in-memory permission store")
		return store, func() {}, nil
	}

	store, err := postgres.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := seedCatalog(ctx, store); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	log.Info("using postgres permission store")
	return store, func() { _ = store.Close() }, nil
}

func seedCatalog(ctx context.Context, store *postgres.Store) error {
	stmts := []string{
		`insert into roles (key, display_name) values ('ROLE_BASE', 'Base'), ('ROLE_MEMBER', 'Member') on conflict do nothing`,
		`insert into role_permissions (role_key, permission_key) values
			('ROLE_BASE', 'profile.read'),
			('ROLE_MEMBER', 'content.read'),
			('ROLE_MEMBER', 'content.comment') on conflict do nothing`,
		`insert into membership_tiers (group_key, tier_key, sort_order) values ('plan', 'pro', 1) on conflict do nothing`,
		`insert into tier_permissions (group_key, tier_key, permission_key) values ('plan', 'pro', 'export.csv') on conflict do nothing`,
	}
	for _, stmt := range stmts {
		if _, err := store.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}

// assignRoles goes through the engine so every grant is audited.
func assignRoles(ctx context.Context, engine *goIdentity.Engine, userIDs []string) error {
	if err := engine.AddRoleInclude(ctx, "ROLE_MEMBER", "ROLE_BASE", loadtestActor); err != nil {
		return fmt.Errorf("add include: %w", err)
	}
	for i, id := range userIDs {
		_, err := engine.AssignRole(ctx, id, "ROLE_MEMBER", loadtestActor, nil)
		if err != nil && !errors.Is(err, goIdentity.ErrRoleAlreadyAssigned) {
			return fmt.Errorf("assign role to %s: %w", id, err)
		}
		if i%2 == 0 {
			if _, err := engine.GrantMembership(ctx, id, "plan", "pro", loadtestActor, nil); err != nil {
				return fmt.Errorf("grant membership to %s: %w", id, err)
			}
		}
	}
	return nil
}
