// Package internal holds helpers that are private to goIdentity.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: pure-function orchestrators for login, refresh, logout and validate
//   - limiters: the login guard with escalating lockout
//   - rate: the Redis fixed-window counter the guard is built on
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
