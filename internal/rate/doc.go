// Package rate provides the Redis fixed-window counter that security
// limiters are built on.
//
// # Window semantics
//
// A window opens on the first hit: INCR and PEXPIRE run in one Lua script, so
// a counter can never exist without its expiry and concurrent hits are never
// lost. Later hits in the same window leave the expiry alone.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goIdentity module.
package rate
