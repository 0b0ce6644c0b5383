// Package goIdentity is an identity engine: signed JWT access and refresh
// tokens with rotating signing keys, Redis-backed refresh sessions with
// compare-and-swap rotation, an access-token blacklist, escalating login
// lockout, and permission resolution over a role-inclusion DAG merged with
// membership tiers.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Instances share nothing in process; all coordination
// goes through Redis scripts, so any number of engines may front the same
// Redis deployment.
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, the login guard and the audit
// dispatcher live under internal/. Token mechanics live in jwt, session
// state in session, and role and membership logic in permission.
//
// User lookup ([UserDirectory]) and password checks ([CredentialVerifier])
// are collaborators supplied by the caller.
//
// # What this package must NOT do
//
//   - Hash or store passwords.
//   - Retry store operations. Every store error fails the call closed.
//   - Import any sub-package that re-imports goIdentity (no import cycles).
package goIdentity
