// Package jwt issues and verifies access and refresh tokens against a
// rotating set of signing keys.
//
// Keys live in an immutable [KeyRing] handed out by a [KeySource]. Issuance
// always uses the ring's current key and stamps its id into the kid header.
// Verification accepts any key in the ring that has not expired, so tokens
// signed just before a rotation stay valid until their own expiry.
//
// Key lookup failures ([ErrKeyNotFound], [ErrKeyExpired]) are configuration
// errors and are reported as [*KeyError]; use [IsKeyConfigurationError] to
// tell them apart from per-request token failures.
package jwt
