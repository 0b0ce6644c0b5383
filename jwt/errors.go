package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when the token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the token cannot be decoded.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature or algorithm does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenInvalid is returned for any other claim violation (issuer, audience, token use, iat).
	ErrTokenInvalid = errors.New("token invalid")
	// ErrNoRolesAssigned is returned when an access token is requested for a user with no roles.
	ErrNoRolesAssigned = errors.New("no roles assigned")
	// ErrKeyNotFound is a key-configuration error: the token names a key the ring does not hold.
	ErrKeyNotFound = errors.New("signing key not found")
	// ErrKeyExpired is a key-configuration error: the token's key is past its expiry.
	ErrKeyExpired = errors.New("signing key expired")
	// ErrKeyNotActive is a key-configuration error: the current key cannot sign yet or anymore.
	ErrKeyNotActive = errors.New("signing key not active")
	// ErrNoKeyRing is returned when the key source has no ring loaded.
	ErrNoKeyRing = errors.New("no key ring configured")
)

// KeyError carries the key id behind a key-configuration failure.
// It unwraps to ErrKeyNotFound, ErrKeyExpired or ErrKeyNotActive.
type KeyError struct {
	KeyID string
	Err   error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v (kid=%q)", e.Err, e.KeyID)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// IsKeyConfigurationError reports whether err is a deployment-level key
// failure that must not be retried per request.
func IsKeyConfigurationError(err error) bool {
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrKeyExpired) ||
		errors.Is(err, ErrKeyNotActive) ||
		errors.Is(err, ErrNoKeyRing)
}

// classify maps golang-jwt parser failures onto this package's taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return keyErr
	}

	switch {
	case errors.Is(err, ErrTokenInvalid):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
