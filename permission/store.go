package permission

import (
	"context"
	"time"
)

// IncludeSource reads role-include edges (role → included role).
type IncludeSource interface {
	DirectIncludes(ctx context.Context, roleKey string) ([]string, error)
	AllIncludes(ctx context.Context) (map[string][]string, error)
}

// Catalog is read-only reference data: roles, their includes and
// permissions, and membership tiers with their permissions.
//
// Role returns [ErrRoleNotFound] and Tier returns [ErrTierNotFound] for
// unknown keys.
type Catalog interface {
	IncludeSource
	Role(ctx context.Context, key string) (Role, error)
	RolePermissions(ctx context.Context, roleKeys []string) ([]string, error)
	Tier(ctx context.Context, group, tierKey string) (MembershipTier, error)
	TierPermissions(ctx context.Context, group, tierKey string) ([]string, error)
}

// IncludeWriter persists role-include edges.
//
// AddIncludeIfAcyclic checks that includeKey cannot reach roleKey and
// inserts the edge in one atomic step, so concurrent writers cannot close a
// cycle between them. It fails with [ErrRoleCycle] when the edge would
// close a cycle (a self edge included). added is false when the edge was
// already present and nothing was written.
type IncludeWriter interface {
	AddIncludeIfAcyclic(ctx context.Context, roleKey, includeKey string) (added bool, err error)
}

// AssignmentStore persists role assignments. Assignments returns expired
// rows too; callers filter by time.
type AssignmentStore interface {
	Assignments(ctx context.Context, userID string) ([]RoleAssignment, error)
	// SaveAssignment upserts on (UserID, RoleKey).
	SaveAssignment(ctx context.Context, assignment RoleAssignment) error
	DeleteAssignment(ctx context.Context, userID, roleKey string) error
}

// MembershipStore persists user memberships.
type MembershipStore interface {
	Memberships(ctx context.Context, userID string) ([]UserMembership, error)
	// ActivateMembership cancels any ACTIVE membership of the user in
	// m.Group and stores m, as one unit. It returns the tier that was
	// cancelled, or "".
	ActivateMembership(ctx context.Context, m UserMembership) (string, error)
	CancelMembership(ctx context.Context, userID, group string, at time.Time) error
}

// AuditSink appends audit records.
type AuditSink interface {
	Append(ctx context.Context, record AuditRecord) error
}

// EventPublisher delivers notifications to out-of-process consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
