package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// UserRecord is what a UserDirectory returns. Roles is used for the access
// token only when the engine has no permission stores; otherwise roles come
// from the resolver.
type UserRecord struct {
	UserID       string
	Identifier   string
	Email        string
	Nickname     string
	Username     string
	PasswordHash string
	Roles        []string
}

// UserDirectory looks users up for login and refresh.
// Both methods return ErrUserNotFound for unknown users.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	FindByID(ctx context.Context, userID string) (UserRecord, error)
}

// CredentialVerifier checks a presented password against a user record.
// Hashing lives entirely behind this interface.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, user UserRecord, password string) (bool, error)
}

// CredentialVerifierFunc adapts a function to CredentialVerifier.
type CredentialVerifierFunc func(ctx context.Context, user UserRecord, password string) (bool, error)

func (f CredentialVerifierFunc) VerifyCredentials(ctx context.Context, user UserRecord, password string) (bool, error) {
	return f(ctx, user, password)
}

// Credentials is the input to Engine.Issue.
type Credentials struct {
	Identifier string
	Password   string
	IP         string
}

// TokenPair is returned by Issue and Refresh. ExpiresIn is the access token
// lifetime.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// Claims is the verified access-token payload returned by Validate.
type Claims = jwt.AccessClaims

// LoginState reports the lockout bookkeeping for one login key.
type LoginState struct {
	Key           string
	Failures      int
	Locked        bool
	LockRemaining time.Duration
}
