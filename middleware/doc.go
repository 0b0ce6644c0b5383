// Package middleware adapts goIdentity.Engine to net/http.
//
//   - [Guard] validates the bearer access token and stores the claims in the
//     request context.
//   - [RequireRole] checks a role carried in the token.
//   - [RequirePermission] checks a permission resolved at request time.
//
// All decisions are delegated to the engine; this package only maps results
// to status codes.
package middleware
