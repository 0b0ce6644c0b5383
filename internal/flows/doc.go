// Package flows contains pure-function orchestrators for the Engine's
// token operations: login, refresh, logout and validate.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunValidate) accepts
// a typed dependency struct of function fields and returns a result with a
// failure kind. The root package maps failure kinds onto its public error
// taxonomy.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, blacklist, JWT
// manager, login guard, audit emitter and metrics. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
