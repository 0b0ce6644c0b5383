package permission

import (
	"slices"
	"time"
)

// Role is a catalog entry. System roles can never be revoked from a user.
type Role struct {
	Key         string
	DisplayName string
	System      bool
}

// RoleAssignment grants RoleKey to UserID, optionally until ExpiresAt.
type RoleAssignment struct {
	UserID     string
	RoleKey    string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
}

// IsActive reports whether the assignment has not expired at now.
func (a RoleAssignment) IsActive(now time.Time) bool {
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// MembershipStatus is the lifecycle state of a [UserMembership].
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipCancelled MembershipStatus = "CANCELLED"
)

// MembershipTier is one entitlement level within a group.
type MembershipTier struct {
	Group     string
	TierKey   string
	SortOrder int
}

// UserMembership places a user on a tier of a group.
// At most one membership per (UserID, Group) is ACTIVE.
type UserMembership struct {
	UserID    string
	Group     string
	Tier      string
	Status    MembershipStatus
	StartedAt time.Time
	ExpiresAt *time.Time
}

// IsActive reports whether the membership is ACTIVE and not expired at now.
func (m UserMembership) IsActive(now time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}

// AuditRecord is one append-only entry describing a mutation.
type AuditRecord struct {
	ID           string
	EventType    string
	ActorID      string
	TargetUserID string
	Details      map[string]string
	Timestamp    time.Time
}

// Audit event types written by [AuditedAdmin].
const (
	AuditRoleAssigned        = "ROLE_ASSIGNED"
	AuditRoleRevoked         = "ROLE_REVOKED"
	AuditRoleIncludeAdded    = "ROLE_INCLUDE_ADDED"
	AuditMembershipGranted   = "MEMBERSHIP_GRANTED"
	AuditMembershipCancelled = "MEMBERSHIP_CANCELLED"
)

// Event is the notification published after a role assignment.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	RoleKey    string    `json:"role_key,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventRoleAssigned is the [Event] type published by [Admin.AssignRole].
const EventRoleAssigned = "role.assigned"

// PermissionsView is the effective authorization state of one user.
type PermissionsView struct {
	UserID      string            `json:"user_id"`
	Roles       []string          `json:"roles"`
	Permissions []string          `json:"permissions"`
	Memberships map[string]string `json:"memberships"`
}

// Has reports whether permission is in the view. Permissions is sorted.
func (v PermissionsView) Has(permission string) bool {
	_, ok := slices.BinarySearch(v.Permissions, permission)
	return ok
}

// HasRole reports whether role is among the view's effective roles.
func (v PermissionsView) HasRole(role string) bool {
	return slices.Contains(v.Roles, role)
}

// AssignRoleRequest is the input to [Admin.AssignRole].
type AssignRoleRequest struct {
	UserID    string
	RoleKey   string
	ExpiresAt *time.Time
}

// GrantMembershipRequest is the input to [Admin.GrantMembership].
type GrantMembershipRequest struct {
	UserID    string
	Group     string
	Tier      string
	ExpiresAt *time.Time
}
