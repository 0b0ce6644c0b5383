package permission

import "errors"

var (
	// ErrRoleNotFound is returned when a role key is not in the catalog.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleAlreadyAssigned is returned when the user already holds an active assignment for the role.
	ErrRoleAlreadyAssigned = errors.New("role already assigned")
	// ErrRoleNotAssigned is returned when revoking a role the user does not actively hold.
	ErrRoleNotAssigned = errors.New("role not assigned")
	// ErrSystemRoleProtected is returned when revoking a system or protected role.
	ErrSystemRoleProtected = errors.New("system role protected")
	// ErrRoleCycle is returned when a role include would close a cycle.
	ErrRoleCycle = errors.New("role include would create a cycle")
	// ErrMembershipNotFound is returned when the user has no active membership in the group.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrTierNotFound is returned when (group, tier) is not in the catalog.
	ErrTierNotFound = errors.New("membership tier not found")
	// ErrAuditWriteFailed is returned when a mutation succeeded but its audit record could not be appended.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)
