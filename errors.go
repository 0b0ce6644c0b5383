package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
)

var (
	// ErrAuthenticationFailed is returned by Issue for every rejected login.
	// A login refused because of an active lock also matches ErrLoginLocked.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrLoginLocked is returned when the login key is under lockout.
	ErrLoginLocked = errors.New("login temporarily locked")
	// ErrUserNotFound is returned by a UserDirectory for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrRefreshInvalid is returned when a refresh token fails verification
	// or no longer matches a live session.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when the rotation compare-and-swap loses.
	// The caller must re-authenticate.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenRevoked is returned by Validate for a blacklisted access token.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRedisUnavailable wraps every failure of the shared session store.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrEngineNotReady is returned when an operation needs a collaborator
	// the engine was built without.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Re-exported so callers can classify engine errors from one import.
var (
	ErrTokenExpired     = jwt.ErrTokenExpired
	ErrTokenMalformed   = jwt.ErrTokenMalformed
	ErrSignatureInvalid = jwt.ErrSignatureInvalid
	ErrTokenInvalid     = jwt.ErrTokenInvalid
	ErrNoRolesAssigned  = jwt.ErrNoRolesAssigned
	ErrKeyNotFound      = jwt.ErrKeyNotFound
	ErrKeyExpired       = jwt.ErrKeyExpired

	ErrRoleNotFound        = permission.ErrRoleNotFound
	ErrRoleAlreadyAssigned = permission.ErrRoleAlreadyAssigned
	ErrRoleNotAssigned     = permission.ErrRoleNotAssigned
	ErrSystemRoleProtected = permission.ErrSystemRoleProtected
	ErrRoleCycle           = permission.ErrRoleCycle
	ErrMembershipNotFound  = permission.ErrMembershipNotFound
	ErrTierNotFound        = permission.ErrTierNotFound
	ErrAuditWriteFailed    = permission.ErrAuditWriteFailed
)

// IsKeyConfigurationError reports whether err is a signing-key deployment
// failure (unknown or expired kid, inactive current key, no key ring).
// Such errors are never retried.
func IsKeyConfigurationError(err error) bool {
	return jwt.IsKeyConfigurationError(err)
}
