package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventLockoutApplied       = "lockout_applied"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventTokenRevokedUse      = "revoked_token_presented"
	auditEventKeyConfigError       = "signing_key_error"
	auditEventRoleAssigned         = "role_assigned"
	auditEventRoleRevoked          = "role_revoked"
	auditEventRoleIncludeAdded     = "role_include_added"
	auditEventMembershipGranted    = "membership_granted"
	auditEventMembershipCancelled  = "membership_cancelled"
)

// AuditErrorCode is the stable error vocabulary written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrLoginLocked        AuditErrorCode = "login_locked"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrKeyConfiguration   AuditErrorCode = "key_configuration"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrNoRoles            AuditErrorCode = "no_roles_assigned"
	auditErrPermission         AuditErrorCode = "permission_rejected"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	actorID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		ActorID:   actorID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrLoginLocked):
		return auditErrLoginLocked
	case errors.Is(err, ErrAuthenticationFailed):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case jwt.IsKeyConfigurationError(err):
		return auditErrKeyConfiguration
	case errors.Is(err, jwt.ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, jwt.ErrTokenInvalid),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, jwt.ErrNoRolesAssigned):
		return auditErrNoRoles
	case errors.Is(err, permission.ErrRoleNotFound),
		errors.Is(err, permission.ErrRoleAlreadyAssigned),
		errors.Is(err, permission.ErrRoleNotAssigned),
		errors.Is(err, permission.ErrSystemRoleProtected),
		errors.Is(err, permission.ErrRoleCycle),
		errors.Is(err, permission.ErrMembershipNotFound),
		errors.Is(err, permission.ErrTierNotFound),
		errors.Is(err, permission.ErrInvalidRequest):
		return auditErrPermission
	case errors.Is(err, ErrRedisUnavailable),
		errors.Is(err, permission.ErrAuditWriteFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
