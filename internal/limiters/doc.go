// Package limiters provides domain-specific limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [LoginGuard]: failure counting and escalating lockout per IP or
//     IP+identifier key.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting and locking. Callers decide how
//     a lock surfaces to the user.
package limiters
