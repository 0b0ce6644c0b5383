package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
)

// ResolvePermissions returns the user's effective roles, permissions and
// active memberships. Any store error fails the call; nothing is granted
// on partial data.
func (e *Engine) ResolvePermissions(ctx context.Context, userID string) (permission.PermissionsView, error) {
	if e == nil || e.resolver == nil {
		return permission.PermissionsView{}, ErrEngineNotReady
	}

	start := e.now()
	view, err := e.resolver.ResolvePermissions(ctx, userID)
	e.metrics.Observe(MetricResolveLatency, e.now().Sub(start))
	if err != nil {
		e.metricInc(MetricPermissionsFailure)
		return permission.PermissionsView{}, err
	}

	e.metricInc(MetricPermissionsResolved)
	return view, nil
}

// HierarchyGraph returns every role-include edge as role → direct includes.
func (e *Engine) HierarchyGraph(ctx context.Context) (map[string][]string, error) {
	if e == nil || e.resolver == nil {
		return nil, ErrEngineNotReady
	}
	return e.resolver.Graph().HierarchyGraph(ctx)
}

// AssignRole grants roleKey to userID on behalf of actorID, optionally
// until expiresAt.
func (e *Engine) AssignRole(ctx context.Context, userID, roleKey, actorID string, expiresAt *time.Time) (permission.RoleAssignment, error) {
	if e == nil || e.admin == nil {
		return permission.RoleAssignment{}, ErrEngineNotReady
	}

	assignment, err := e.admin.AssignRole(ctx, permission.AssignRoleRequest{
		UserID:    userID,
		RoleKey:   roleKey,
		ExpiresAt: expiresAt,
	}, actorID)
	meta := func() map[string]string {
		return map[string]string{"role": roleKey}
	}
	if err != nil && !isAuditOnlyFailure(err) {
		e.emitAudit(ctx, auditEventRoleAssigned, false, userID, actorID, err, meta)
		return permission.RoleAssignment{}, err
	}

	e.metricInc(MetricRoleAssigned)
	e.emitAudit(ctx, auditEventRoleAssigned, true, userID, actorID, err, meta)
	return assignment, err
}

// RevokeRole removes roleKey from userID. System and protected roles are
// refused with ErrSystemRoleProtected.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleKey, actorID string) error {
	if e == nil || e.admin == nil {
		return ErrEngineNotReady
	}

	err := e.admin.RevokeRole(ctx, userID, roleKey, actorID)
	meta := func() map[string]string {
		return map[string]string{"role": roleKey}
	}
	if err != nil && !isAuditOnlyFailure(err) {
		e.emitAudit(ctx, auditEventRoleRevoked, false, userID, actorID, err, meta)
		return err
	}

	e.metricInc(MetricRoleRevoked)
	e.emitAudit(ctx, auditEventRoleRevoked, true, userID, actorID, err, meta)
	return err
}

// AddRoleInclude makes roleKey include includeKey. An edge that would close
// a cycle is refused with ErrRoleCycle before anything is written. Adding
// an edge that already exists is a no-op.
func (e *Engine) AddRoleInclude(ctx context.Context, roleKey, includeKey, actorID string) error {
	if e == nil || e.admin == nil {
		return ErrEngineNotReady
	}

	added, err := e.admin.AddRoleInclude(ctx, roleKey, includeKey, actorID)
	meta := func() map[string]string {
		return map[string]string{"role": roleKey, "include": includeKey}
	}
	if err != nil && !isAuditOnlyFailure(err) {
		e.emitAudit(ctx, auditEventRoleIncludeAdded, false, "", actorID, err, meta)
		return err
	}
	if !added {
		return nil
	}

	e.metricInc(MetricRoleIncludeAdded)
	e.emitAudit(ctx, auditEventRoleIncludeAdded, true, "", actorID, err, meta)
	return err
}

// GrantMembership puts userID on tier within group, cancelling any active
// membership the user already had in that group.
func (e *Engine) GrantMembership(ctx context.Context, userID, group, tier, actorID string, expiresAt *time.Time) (permission.MembershipChange, error) {
	if e == nil || e.admin == nil {
		return permission.MembershipChange{}, ErrEngineNotReady
	}

	change, err := e.admin.GrantMembership(ctx, permission.GrantMembershipRequest{
		UserID:    userID,
		Group:     group,
		Tier:      tier,
		ExpiresAt: expiresAt,
	}, actorID)
	meta := func() map[string]string {
		m := map[string]string{"group": group, "tier": tier}
		if change.PreviousTier != "" {
			m["previous_tier"] = change.PreviousTier
		}
		return m
	}
	if err != nil && !isAuditOnlyFailure(err) {
		e.emitAudit(ctx, auditEventMembershipGranted, false, userID, actorID, err, meta)
		return permission.MembershipChange{}, err
	}

	e.metricInc(MetricMembershipGranted)
	e.emitAudit(ctx, auditEventMembershipGranted, true, userID, actorID, err, meta)
	return change, err
}

// CancelMembership cancels userID's active membership in group.
func (e *Engine) CancelMembership(ctx context.Context, userID, group, actorID string) (permission.UserMembership, error) {
	if e == nil || e.admin == nil {
		return permission.UserMembership{}, ErrEngineNotReady
	}

	cancelled, err := e.admin.CancelMembership(ctx, userID, group, actorID)
	meta := func() map[string]string {
		return map[string]string{"group": group}
	}
	if err != nil && !isAuditOnlyFailure(err) {
		e.emitAudit(ctx, auditEventMembershipCancelled, false, userID, actorID, err, meta)
		return permission.UserMembership{}, err
	}

	e.metricInc(MetricMembershipCancelled)
	e.emitAudit(ctx, auditEventMembershipCancelled, true, userID, actorID, err, meta)
	return cancelled, err
}

// isAuditOnlyFailure reports an error from a mutation that was applied but
// whose audit record could not be written.
func isAuditOnlyFailure(err error) bool {
	return errors.Is(err, permission.ErrAuditWriteFailed)
}
