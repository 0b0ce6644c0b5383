package permission

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditedAdmin wraps an [Administrator] and appends exactly one
// [AuditRecord] after every successful mutation. Failed mutations write
// nothing.
//
// The record is appended after the mutation has been stored. If the append
// fails the mutation stays applied and the call returns
// [ErrAuditWriteFailed].
type AuditedAdmin struct {
	next Administrator
	sink AuditSink
	now  func() time.Time
}

var _ Administrator = (*AuditedAdmin)(nil)

// NewAuditedAdmin decorates next.
func NewAuditedAdmin(next Administrator, sink AuditSink, now func() time.Time) *AuditedAdmin {
	if now == nil {
		now = time.Now
	}
	return &AuditedAdmin{next: next, sink: sink, now: now}
}

func (a *AuditedAdmin) record(ctx context.Context, eventType, actorID, targetUserID string, details map[string]string) error {
	rec := AuditRecord{
		ID:           uuid.NewString(),
		EventType:    eventType,
		ActorID:      actorID,
		TargetUserID: targetUserID,
		Details:      details,
		Timestamp:    a.now().UTC(),
	}
	// The write already happened; a cancelled caller must not lose its record.
	if err := a.sink.Append(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

func (a *AuditedAdmin) AssignRole(ctx context.Context, req AssignRoleRequest, actorID string) (RoleAssignment, error) {
	out, err := a.next.AssignRole(ctx, req, actorID)
	if err != nil {
		return out, err
	}
	details := map[string]string{"role": out.RoleKey}
	if out.ExpiresAt != nil {
		details["expires_at"] = out.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out, a.record(ctx, AuditRoleAssigned, actorID, out.UserID, details)
}

func (a *AuditedAdmin) RevokeRole(ctx context.Context, userID, roleKey, actorID string) error {
	if err := a.next.RevokeRole(ctx, userID, roleKey, actorID); err != nil {
		return err
	}
	return a.record(ctx, AuditRoleRevoked, actorID, strings.TrimSpace(userID), map[string]string{"role": strings.TrimSpace(roleKey)})
}

// AddRoleInclude writes no record when the edge already existed.
func (a *AuditedAdmin) AddRoleInclude(ctx context.Context, roleKey, includeKey, actorID string) (bool, error) {
	added, err := a.next.AddRoleInclude(ctx, roleKey, includeKey, actorID)
	if err != nil || !added {
		return added, err
	}
	return true, a.record(ctx, AuditRoleIncludeAdded, actorID, "", map[string]string{
		"role":    strings.TrimSpace(roleKey),
		"include": strings.TrimSpace(includeKey),
	})
}

func (a *AuditedAdmin) GrantMembership(ctx context.Context, req GrantMembershipRequest, actorID string) (MembershipChange, error) {
	out, err := a.next.GrantMembership(ctx, req, actorID)
	if err != nil {
		return out, err
	}
	details := map[string]string{
		"group":    out.Membership.Group,
		"tier":     out.Membership.Tier,
		"replaced": strconv.FormatBool(out.PreviousTier != ""),
	}
	if out.PreviousTier != "" {
		details["previous_tier"] = out.PreviousTier
	}
	return out, a.record(ctx, AuditMembershipGranted, actorID, out.Membership.UserID, details)
}

func (a *AuditedAdmin) CancelMembership(ctx context.Context, userID, group, actorID string) (UserMembership, error) {
	out, err := a.next.CancelMembership(ctx, userID, group, actorID)
	if err != nil {
		return out, err
	}
	return out, a.record(ctx, AuditMembershipCancelled, actorID, out.UserID, map[string]string{
		"group": out.Group,
		"tier":  out.Tier,
	})
}
