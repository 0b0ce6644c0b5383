// Package permission resolves a user's effective permissions from role
// assignments, a role-include hierarchy, and membership tiers, and owns the
// mutations that change them.
//
// # Hierarchy
//
// Role includes form a DAG. [RoleGraph] expands roles breadth first and
// rejects edges that would close a cycle before they are stored.
//
// # Auditing
//
// [Admin] performs mutations only. [AuditedAdmin] decorates it so that each
// successful mutation is followed by exactly one [AuditRecord].
//
// # Architecture boundaries
//
// Storage is reached only through the interfaces in store.go; see
// store/postgres for a reference adapter.
//
// # What this package must NOT do
//
//   - Import goIdentity, jwt, or session.
//   - Cache user-specific state (assignments, memberships) across calls.
package permission
