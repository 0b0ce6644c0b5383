// Package memory is an in-process implementation of the permission storage
// interfaces. It backs tests and the load-test tool; production deployments
// use store/postgres.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
)

// Store holds catalog, assignment, membership and audit data in memory.
type Store struct {
	mu sync.RWMutex

	roles       map[string]permission.Role
	rolePerms   map[string][]string
	includes    map[string][]string
	tiers       map[string]permission.MembershipTier
	tierPerms   map[string][]string
	assignments map[string]map[string]permission.RoleAssignment
	memberships map[string][]permission.UserMembership
	audit       []permission.AuditRecord
}

var (
	_ permission.Catalog         = (*Store)(nil)
	_ permission.IncludeStore    = (*Store)(nil)
	_ permission.AssignmentStore = (*Store)(nil)
	_ permission.MembershipStore = (*Store)(nil)
	_ permission.AuditSink       = (*Store)(nil)
)

// New returns an empty [Store].
func New() *Store {
	return &Store{
		roles:       map[string]permission.Role{},
		rolePerms:   map[string][]string{},
		includes:    map[string][]string{},
		tiers:       map[string]permission.MembershipTier{},
		tierPerms:   map[string][]string{},
		assignments: map[string]map[string]permission.RoleAssignment{},
		memberships: map[string][]permission.UserMembership{},
	}
}

func tierKey(group, tier string) string {
	return group + "\x00" + tier
}

// PutRole adds or replaces a catalog role and its permissions.
func (s *Store) PutRole(role permission.Role, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.Key] = role
	s.rolePerms[role.Key] = slices.Clone(permissions)
}

// PutTier adds or replaces a membership tier and its permissions.
func (s *Store) PutTier(tier permission.MembershipTier, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tierKey(tier.Group, tier.TierKey)
	s.tiers[k] = tier
	s.tierPerms[k] = slices.Clone(permissions)
}

func (s *Store) Role(_ context.Context, key string) (permission.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[key]
	if !ok {
		return permission.Role{}, permission.ErrRoleNotFound
	}
	return role, nil
}

func (s *Store) RolePermissions(_ context.Context, roleKeys []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, key := range roleKeys {
		out = append(out, s.rolePerms[key]...)
	}
	return out, nil
}

func (s *Store) DirectIncludes(_ context.Context, roleKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.includes[roleKey]), nil
}

func (s *Store) AllIncludes(context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.includes))
	for role, includes := range s.includes {
		out[role] = slices.Clone(includes)
	}
	return out, nil
}

// AddIncludeIfAcyclic runs the reachability check and the insert under one
// write lock.
func (s *Store) AddIncludeIfAcyclic(ctx context.Context, roleKey, includeKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.includes[roleKey], includeKey) {
		return false, nil
	}
	cycle, err := permission.NewRoleGraph(includeView(s.includes)).WouldCreateCycle(ctx, roleKey, includeKey)
	if err != nil {
		return false, err
	}
	if cycle {
		return false, permission.ErrRoleCycle
	}
	s.includes[roleKey] = append(s.includes[roleKey], includeKey)
	return true, nil
}

// includeView reads the edge map without locking; callers hold s.mu.
type includeView map[string][]string

func (v includeView) DirectIncludes(_ context.Context, roleKey string) ([]string, error) {
	return v[roleKey], nil
}

func (v includeView) AllIncludes(context.Context) (map[string][]string, error) {
	return v, nil
}

func (s *Store) Tier(_ context.Context, group, tier string) (permission.MembershipTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[tierKey(group, tier)]
	if !ok {
		return permission.MembershipTier{}, permission.ErrTierNotFound
	}
	return t, nil
}

func (s *Store) TierPermissions(_ context.Context, group, tier string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tierPerms[tierKey(group, tier)]), nil
}

func (s *Store) Assignments(_ context.Context, userID string) ([]permission.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]permission.RoleAssignment, 0, len(s.assignments[userID]))
	for _, a := range s.assignments[userID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleKey < out[j].RoleKey })
	return out, nil
}

func (s *Store) SaveAssignment(_ context.Context, a permission.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignments[a.UserID] == nil {
		s.assignments[a.UserID] = map[string]permission.RoleAssignment{}
	}
	s.assignments[a.UserID][a.RoleKey] = a
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, userID, roleKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments[userID], roleKey)
	return nil
}

func (s *Store) Memberships(_ context.Context, userID string) ([]permission.UserMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.memberships[userID]), nil
}

// PutMembership stores m as-is, bypassing the one-active-per-group rule.
// Use it to seed fixtures.
func (s *Store) PutMembership(m permission.UserMembership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.UserID] = append(s.memberships[m.UserID], m)
}

func (s *Store) ActivateMembership(_ context.Context, m permission.UserMembership) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var previous string
	rows := s.memberships[m.UserID]
	for i := range rows {
		if rows[i].Group == m.Group && rows[i].Status == permission.MembershipActive {
			rows[i].Status = permission.MembershipCancelled
			previous = rows[i].Tier
		}
	}
	s.memberships[m.UserID] = append(rows, m)
	return previous, nil
}

func (s *Store) CancelMembership(_ context.Context, userID, group string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.memberships[userID]
	for i := range rows {
		if rows[i].Group == group && rows[i].Status == permission.MembershipActive {
			rows[i].Status = permission.MembershipCancelled
		}
	}
	return nil
}

func (s *Store) Append(_ context.Context, rec permission.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

// AuditRecords returns a copy of every appended record, oldest first.
func (s *Store) AuditRecords() []permission.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.audit)
}
