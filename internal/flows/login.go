package flows

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureGuardUnavailable
	LoginFailureLocked
	LoginFailureInvalidCredentials
	LoginFailureUserLookup
	LoginFailureVerifier
	LoginFailureIssue
	LoginFailureSession
)

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	UserID       string
	Identifier   string
	Email        string
	Nickname     string
	Username     string
	PasswordHash string
	Roles        []string
}

// LoginAttempt mirrors the guard's view of a key after a failure.
type LoginAttempt struct {
	Failures      int
	Locked        bool
	LockRemaining time.Duration
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	Key          string
	UserID       string
	Attempt      LoginAttempt
	AccessToken  string
	RefreshToken string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginLocked    int
	LockoutApplied int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess   string
	LoginFailure   string
	LoginLocked    string
	LockoutApplied string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginLocked        error
	UserNotFound       error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	LoginKey      func(ip, identifier string) string
	IsBlocked     func(context.Context, string) (bool, error)
	RecordFailure func(context.Context, string) (LoginAttempt, error)
	RecordSuccess func(context.Context, string) error

	FindUser       func(context.Context, string) (LoginUserRecord, error)
	VerifyPassword func(context.Context, LoginUserRecord, string) (bool, error)
	IssueTokens    func(context.Context, LoginUserRecord) (string, string, error)
	SaveSession    func(context.Context, string, string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)
	Warn      func(err error, msg string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the login flow: lockout check, user lookup, credential
// verification, token issuance and session persistence.
//
// Guard and directory backend errors fail closed without counting a
// failure against the key.
func RunLogin(ctx context.Context, identifier, password, ip string, deps LoginDeps) LoginResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(error, string) {}
	}
	if deps.LoginKey == nil ||
		deps.IsBlocked == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.FindUser == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueTokens == nil ||
		deps.SaveSession == nil {
		return LoginResult{Failure: LoginFailureIssue, Err: deps.Errors.EngineNotReady}
	}

	key := deps.LoginKey(ip, identifier)
	meta := func() map[string]string {
		return map[string]string{
			"identifier": identifier,
		}
	}

	blocked, err := deps.IsBlocked(ctx, key)
	if err != nil {
		return LoginResult{Failure: LoginFailureGuardUnavailable, Err: err, Key: key}
	}
	if blocked {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, "", deps.Errors.LoginLocked, meta)
		return LoginResult{Failure: LoginFailureLocked, Err: deps.Errors.LoginLocked, Key: key}
	}

	fail := func(userID, reason string) LoginResult {
		attempt, err := deps.RecordFailure(ctx, key)
		if err != nil {
			return LoginResult{Failure: LoginFailureGuardUnavailable, Err: err, Key: key, UserID: userID}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     reason,
			}
		})
		if attempt.Locked {
			deps.MetricInc(deps.Metrics.LockoutApplied)
			deps.EmitAudit(ctx, deps.Events.LockoutApplied, false, userID, deps.Errors.LoginLocked, func() map[string]string {
				return map[string]string{
					"identifier":   identifier,
					"failures":     strconv.Itoa(attempt.Failures),
					"lock_seconds": strconv.Itoa(int(attempt.LockRemaining / time.Second)),
				}
			})
		}
		return LoginResult{
			Failure: LoginFailureInvalidCredentials,
			Err:     deps.Errors.InvalidCredentials,
			Key:     key,
			UserID:  userID,
			Attempt: attempt,
		}
	}

	if password == "" {
		return fail("", "empty_password")
	}

	user, err := deps.FindUser(ctx, identifier)
	if err != nil {
		if deps.Errors.UserNotFound != nil && errors.Is(err, deps.Errors.UserNotFound) {
			return fail("", "user_not_found")
		}
		return LoginResult{Failure: LoginFailureUserLookup, Err: err, Key: key}
	}

	ok, err := deps.VerifyPassword(ctx, user, password)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerifier, Err: err, Key: key, UserID: user.UserID}
	}
	if !ok {
		return fail(user.UserID, "password_mismatch")
	}
	password = ""

	access, refresh, err := deps.IssueTokens(ctx, user)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Key: key, UserID: user.UserID}
	}

	if err := deps.SaveSession(ctx, user.UserID, refresh); err != nil {
		return LoginResult{Failure: LoginFailureSession, Err: err, Key: key, UserID: user.UserID}
	}

	if err := deps.RecordSuccess(ctx, key); err != nil {
		deps.Warn(err, "login guard reset failed after successful login")
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, nil, meta)

	return LoginResult{
		Failure:      LoginFailureNone,
		Key:          key,
		UserID:       user.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
