package permission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// ResolverConfig tunes permission resolution.
type ResolverConfig struct {
	// ExpandHierarchy expands assigned roles through role includes before
	// looking up permissions. Leave it off when assignments already hold
	// expanded roles.
	ExpandHierarchy bool
	Now             func() time.Time
}

// Resolver computes a user's effective permissions. It only reads.
type Resolver struct {
	catalog     Catalog
	assignments AssignmentStore
	memberships MembershipStore
	graph       *RoleGraph
	expand      bool
	now         func() time.Time
}

// NewResolver creates a [Resolver].
func NewResolver(catalog Catalog, assignments AssignmentStore, memberships MembershipStore, cfg ResolverConfig) *Resolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		catalog:     catalog,
		assignments: assignments,
		memberships: memberships,
		graph:       NewRoleGraph(catalog),
		expand:      cfg.ExpandHierarchy,
		now:         now,
	}
}

// Graph returns the role graph the resolver expands through.
func (r *Resolver) Graph() *RoleGraph {
	return r.graph
}

// ResolvePermissions returns the deduplicated union of permissions granted
// by the user's active role assignments and active memberships. Role and
// membership lookups run concurrently; any store error fails the whole call.
func (r *Resolver) ResolvePermissions(ctx context.Context, userID string) (PermissionsView, error) {
	now := r.now()

	var (
		roles       []string
		rolePerms   []string
		memberships map[string]string
		tierPerms   []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = r.activeRoles(gctx, userID, now)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return nil
		}
		rolePerms, err = r.catalog.RolePermissions(gctx, roles)
		if err != nil {
			return fmt.Errorf("load role permissions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		memberships, err = r.activeMemberships(gctx, userID, now)
		if err != nil {
			return err
		}
		for group, tier := range memberships {
			perms, err := r.catalog.TierPermissions(gctx, group, tier)
			if err != nil {
				return fmt.Errorf("load tier permissions %s/%s: %w", group, tier, err)
			}
			tierPerms = append(tierPerms, perms...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return PermissionsView{}, err
	}

	return PermissionsView{
		UserID:      userID,
		Roles:       roles,
		Permissions: union(rolePerms, tierPerms),
		Memberships: memberships,
	}, nil
}

// ActiveRoles returns the user's active roles, expanded through the
// hierarchy when the resolver is configured to.
func (r *Resolver) ActiveRoles(ctx context.Context, userID string) ([]string, error) {
	return r.activeRoles(ctx, userID, r.now())
}

func (r *Resolver) activeRoles(ctx context.Context, userID string, now time.Time) ([]string, error) {
	assignments, err := r.assignments.Assignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load role assignments: %w", err)
	}

	seed := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.IsActive(now) {
			seed = append(seed, a.RoleKey)
		}
	}
	if !r.expand || len(seed) == 0 {
		return dedupe(seed), nil
	}
	return r.graph.ResolveEffectiveRoles(ctx, seed)
}

func (r *Resolver) activeMemberships(ctx context.Context, userID string, now time.Time) (map[string]string, error) {
	rows, err := r.memberships.Memberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, m := range rows {
		if m.IsActive(now) {
			out[m.Group] = m.Tier
		}
	}
	return out, nil
}

func union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, p := range set {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
