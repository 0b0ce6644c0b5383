package permission

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Administrator is the set of mutating role and membership operations.
// [Admin] implements it; [AuditedAdmin] decorates any implementation.
type Administrator interface {
	AssignRole(ctx context.Context, req AssignRoleRequest, actorID string) (RoleAssignment, error)
	RevokeRole(ctx context.Context, userID, roleKey, actorID string) error
	AddRoleInclude(ctx context.Context, roleKey, includeKey, actorID string) (bool, error)
	GrantMembership(ctx context.Context, req GrantMembershipRequest, actorID string) (MembershipChange, error)
	CancelMembership(ctx context.Context, userID, group, actorID string) (UserMembership, error)
}

// MembershipChange is the result of [Admin.GrantMembership].
type MembershipChange struct {
	Membership UserMembership
	// PreviousTier is the tier that was cancelled to make room, or "".
	PreviousTier string
}

// IncludeStore reads and writes role-include edges without caching.
type IncludeStore interface {
	IncludeSource
	IncludeWriter
}

// AdminStores groups the collaborators of [Admin]. Publisher may be nil.
type AdminStores struct {
	Catalog     Catalog
	Includes    IncludeWriter
	Assignments AssignmentStore
	Memberships MembershipStore
	Publisher   EventPublisher
}

// AdminConfig tunes [Admin].
type AdminConfig struct {
	// ProtectedRoles can never be revoked, in addition to roles flagged System.
	ProtectedRoles []string
	Now            func() time.Time
	Logger         logrus.FieldLogger
}

type purger interface {
	Purge()
}

// Admin applies role and membership mutations. It writes no audit records;
// wrap it in [AuditedAdmin] for that.
type Admin struct {
	stores    AdminStores
	protected map[string]struct{}
	now       func() time.Time
	log       logrus.FieldLogger
}

var _ Administrator = (*Admin)(nil)

// NewAdmin creates an [Admin].
func NewAdmin(stores AdminStores, cfg AdminConfig) *Admin {
	protected := make(map[string]struct{}, len(cfg.ProtectedRoles))
	for _, key := range cfg.ProtectedRoles {
		protected[key] = struct{}{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Admin{
		stores:    stores,
		protected: protected,
		now:       now,
		log:       log,
	}
}

func (a *Admin) role(ctx context.Context, key string) (Role, error) {
	role, err := a.stores.Catalog.Role(ctx, key)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, key)
		}
		return Role{}, fmt.Errorf("load role %q: %w", key, err)
	}
	return role, nil
}

func (a *Admin) activeAssignment(ctx context.Context, userID, roleKey string, now time.Time) (bool, error) {
	assignments, err := a.stores.Assignments.Assignments(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load role assignments: %w", err)
	}
	return slices.ContainsFunc(assignments, func(x RoleAssignment) bool {
		return x.RoleKey == roleKey && x.IsActive(now)
	}), nil
}

// AssignRole grants a role. It fails with [ErrRoleNotFound] for unknown
// roles and [ErrRoleAlreadyAssigned] when an unexpired assignment exists. A
// [EventRoleAssigned] event is published afterwards; publish failures are
// logged and do not fail the call.
func (a *Admin) AssignRole(ctx context.Context, req AssignRoleRequest, actorID string) (RoleAssignment, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.RoleKey = strings.TrimSpace(req.RoleKey)
	if req.UserID == "" || req.RoleKey == "" {
		return RoleAssignment{}, fmt.Errorf("%w: user id and role key are required", ErrInvalidRequest)
	}

	now := a.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return RoleAssignment{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidRequest)
	}
	if _, err := a.role(ctx, req.RoleKey); err != nil {
		return RoleAssignment{}, err
	}

	exists, err := a.activeAssignment(ctx, req.UserID, req.RoleKey, now)
	if err != nil {
		return RoleAssignment{}, err
	}
	if exists {
		return RoleAssignment{}, ErrRoleAlreadyAssigned
	}

	assignment := RoleAssignment{
		UserID:     req.UserID,
		RoleKey:    req.RoleKey,
		AssignedBy: actorID,
		AssignedAt: now,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := a.stores.Assignments.SaveAssignment(ctx, assignment); err != nil {
		return RoleAssignment{}, fmt.Errorf("save role assignment: %w", err)
	}

	a.publish(ctx, Event{
		ID:         uuid.NewString(),
		Type:       EventRoleAssigned,
		UserID:     assignment.UserID,
		RoleKey:    assignment.RoleKey,
		ActorID:    actorID,
		OccurredAt: now,
	})

	return assignment, nil
}

func (a *Admin) publish(ctx context.Context, event Event) {
	if a.stores.Publisher == nil {
		return
	}
	if err := a.stores.Publisher.Publish(ctx, event); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
			"user_id":    event.UserID,
		}).Warn("event publish failed")
	}
}

// RevokeRole removes a role. System and protected roles fail with
// [ErrSystemRoleProtected]; a role without an active assignment fails with
// [ErrRoleNotAssigned].
func (a *Admin) RevokeRole(ctx context.Context, userID, roleKey, actorID string) error {
	userID = strings.TrimSpace(userID)
	roleKey = strings.TrimSpace(roleKey)
	if userID == "" || roleKey == "" {
		return fmt.Errorf("%w: user id and role key are required", ErrInvalidRequest)
	}

	role, err := a.role(ctx, roleKey)
	if err != nil {
		return err
	}
	if _, protected := a.protected[role.Key]; role.System || protected {
		return fmt.Errorf("%w: %s", ErrSystemRoleProtected, role.Key)
	}

	exists, err := a.activeAssignment(ctx, userID, roleKey, a.now())
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoleNotAssigned
	}

	if err := a.stores.Assignments.DeleteAssignment(ctx, userID, roleKey); err != nil {
		return fmt.Errorf("delete role assignment: %w", err)
	}
	return nil
}

// AddRoleInclude adds the edge roleKey → includeKey. The cycle check and
// the insert happen in one store operation; see [IncludeWriter]. It
// reports false when the edge already existed.
func (a *Admin) AddRoleInclude(ctx context.Context, roleKey, includeKey, actorID string) (bool, error) {
	roleKey = strings.TrimSpace(roleKey)
	includeKey = strings.TrimSpace(includeKey)
	if roleKey == "" || includeKey == "" {
		return false, fmt.Errorf("%w: role and include keys are required", ErrInvalidRequest)
	}
	if _, err := a.role(ctx, roleKey); err != nil {
		return false, err
	}
	if _, err := a.role(ctx, includeKey); err != nil {
		return false, err
	}

	added, err := a.stores.Includes.AddIncludeIfAcyclic(ctx, roleKey, includeKey)
	if errors.Is(err, ErrRoleCycle) {
		return false, fmt.Errorf("%w: %s -> %s", ErrRoleCycle, roleKey, includeKey)
	}
	if err != nil {
		return false, fmt.Errorf("save role include: %w", err)
	}
	if added {
		if p, ok := a.stores.Catalog.(purger); ok {
			p.Purge()
		}
	}
	return added, nil
}

// GrantMembership activates a tier for the user, cancelling any active
// membership the user already had in the same group.
func (a *Admin) GrantMembership(ctx context.Context, req GrantMembershipRequest, actorID string) (MembershipChange, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Group = strings.TrimSpace(req.Group)
	req.Tier = strings.TrimSpace(req.Tier)
	if req.UserID == "" || req.Group == "" || req.Tier == "" {
		return MembershipChange{}, fmt.Errorf("%w: user id, group and tier are required", ErrInvalidRequest)
	}

	now := a.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return MembershipChange{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidRequest)
	}

	if _, err := a.stores.Catalog.Tier(ctx, req.Group, req.Tier); err != nil {
		if errors.Is(err, ErrTierNotFound) {
			return MembershipChange{}, fmt.Errorf("%w: %s/%s", ErrTierNotFound, req.Group, req.Tier)
		}
		return MembershipChange{}, fmt.Errorf("load tier: %w", err)
	}

	m := UserMembership{
		UserID:    req.UserID,
		Group:     req.Group,
		Tier:      req.Tier,
		Status:    MembershipActive,
		StartedAt: now,
		ExpiresAt: req.ExpiresAt,
	}
	previous, err := a.stores.Memberships.ActivateMembership(ctx, m)
	if err != nil {
		return MembershipChange{}, fmt.Errorf("activate membership: %w", err)
	}

	return MembershipChange{Membership: m, PreviousTier: previous}, nil
}

// CancelMembership cancels the user's active membership in group.
func (a *Admin) CancelMembership(ctx context.Context, userID, group, actorID string) (UserMembership, error) {
	userID = strings.TrimSpace(userID)
	group = strings.TrimSpace(group)
	now := a.now()
	rows, err := a.stores.Memberships.Memberships(ctx, userID)
	if err != nil {
		return UserMembership{}, fmt.Errorf("load memberships: %w", err)
	}

	idx := slices.IndexFunc(rows, func(m UserMembership) bool {
		return m.Group == group && m.IsActive(now)
	})
	if idx < 0 {
		return UserMembership{}, ErrMembershipNotFound
	}

	if err := a.stores.Memberships.CancelMembership(ctx, userID, group, now); err != nil {
		return UserMembership{}, fmt.Errorf("cancel membership: %w", err)
	}

	cancelled := rows[idx]
	cancelled.Status = MembershipCancelled
	return cancelled, nil
}
