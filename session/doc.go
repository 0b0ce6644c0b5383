// Package session provides the Redis-backed refresh-token store and the
// access-token blacklist.
//
// # Refresh rotation
//
// Each user has at most one live refresh token, stored under
// refresh_token:{userID}. [Store.Rotate] replaces it in a single Lua script
// so that concurrent refreshes racing on the same token produce exactly one
// winner. The loser sees false and must force re-authentication.
//
// # Blacklist
//
// Revoked access tokens are stored as a SHA-256 digest with a TTL equal to
// the token's remaining lifetime, so entries disappear with the tokens they
// shadow.
//
// # What this package must NOT do
//
//   - Import goIdentity, jwt, or permission (no upward imports).
//   - Interpret token contents or make authorization decisions.
package session
