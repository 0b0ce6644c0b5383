package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
)

// Engine is the identity core: token issuance and validation, refresh
// rotation, logout, login lockout, and permission resolution.
//
// An Engine keeps no per-user state in process. Every instance sharing a
// Redis deployment and key source behaves identically, so any number of
// them may serve traffic side by side. Build one with [New].
type Engine struct {
	config  Config
	log     logrus.FieldLogger
	metrics *Metrics
	audit   *audit.Dispatcher
	now     func() time.Time

	jwt       *jwt.Manager
	sessions  *session.Store
	blacklist *session.Blacklist
	guard     *limiters.LoginGuard

	users    UserDirectory
	verifier CredentialVerifier

	resolver *permission.Resolver
	admin    *permission.AuditedAdmin

	flows flows.Service

	// closers are resources the builder created on the engine's behalf,
	// such as a watched key file.
	closers []io.Closer
}

// Close stops the audit dispatcher after draining queued events and
// releases builder-owned resources. The Redis client and stores passed to
// the builder are left open.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.audit.Close()

	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped returns how many auth events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// Issue authenticates creds and returns a fresh token pair.
//
// Every rejected login returns an error matching ErrAuthenticationFailed.
// A login refused because the key is locked, or the failure that triggered
// the lock, also matches ErrLoginLocked. Guard and session store failures
// return ErrRedisUnavailable and never count as a failed attempt.
func (e *Engine) Issue(ctx context.Context, creds Credentials) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	ip := creds.IP
	if ip == "" {
		ip = clientIPFromContext(ctx)
	} else {
		ctx = WithClientIP(ctx, ip)
	}

	res := e.flows.Login(ctx, creds.Identifier, creds.Password, ip)
	switch res.Failure {
	case flows.LoginFailureNone:
		return e.tokenPair(res.AccessToken, res.RefreshToken), nil
	case flows.LoginFailureLocked:
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrLoginLocked)
	case flows.LoginFailureInvalidCredentials:
		if res.Attempt.Locked {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrLoginLocked)
		}
		return nil, ErrAuthenticationFailed
	case flows.LoginFailureGuardUnavailable, flows.LoginFailureSession:
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	case flows.LoginFailureUserLookup, flows.LoginFailureVerifier:
		e.log.WithError(res.Err).WithField("user_id", res.UserID).Warn("login backend failure")
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, res.Err)
	default:
		if IsKeyConfigurationError(res.Err) {
			e.keyFailure(ctx, res.Err, "issue")
		}
		return nil, res.Err
	}
}

// Refresh exchanges a refresh token for a new pair. The presented token
// must be the one currently stored for its subject; the swap to the new
// token is a single compare-and-swap. Losing that swap returns
// ErrRefreshReuse and the caller must log in again.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
		return e.tokenPair(res.AccessToken, res.RefreshToken), nil
	case flows.RefreshFailureVerify:
		if IsKeyConfigurationError(res.Err) {
			e.keyFailure(ctx, res.Err, "refresh")
			return nil, res.Err
		}
		return nil, fmt.Errorf("%w: %w", ErrRefreshInvalid, res.Err)
	case flows.RefreshFailureUserGone:
		return nil, ErrRefreshInvalid
	case flows.RefreshFailureReuse:
		return nil, ErrRefreshReuse
	case flows.RefreshFailureRotate:
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	case flows.RefreshFailureUserLookup:
		return nil, fmt.Errorf("load user: %w", res.Err)
	default:
		if IsKeyConfigurationError(res.Err) {
			e.keyFailure(ctx, res.Err, "refresh")
		}
		return nil, res.Err
	}
}

// Logout revokes accessToken for the rest of its lifetime and deletes the
// subject's refresh session. An already expired but otherwise valid token
// is accepted; only the session is removed in that case.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, accessToken)
	switch res.Failure {
	case flows.LogoutFailureNone:
		return nil
	case flows.LogoutFailureBlacklist:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	default:
		if IsKeyConfigurationError(res.Err) {
			e.keyFailure(ctx, res.Err, "logout")
		}
		return res.Err
	}
}

// Validate verifies accessToken and returns its claims. A blacklisted token
// fails with ErrTokenRevoked. When the blacklist cannot be read the token is
// denied with ErrRedisUnavailable.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Validate(ctx, accessToken)
	switch res.Failure {
	case flows.ValidateFailureNone:
		return res.Claims, nil
	case flows.ValidateFailureRevoked:
		e.emitAudit(ctx, auditEventTokenRevokedUse, false, res.Claims.Subject, "", ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	case flows.ValidateFailureBlacklistUnavailable:
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	default:
		if IsKeyConfigurationError(res.Err) {
			e.keyFailure(ctx, res.Err, "validate")
		}
		return nil, res.Err
	}
}

// LoginState reports the lockout bookkeeping for the key a login from ip
// with identifier would use.
func (e *Engine) LoginState(ctx context.Context, ip, identifier string) (LoginState, error) {
	if e == nil || e.guard == nil {
		return LoginState{}, ErrEngineNotReady
	}

	key := e.loginKey(ip, identifier)
	state := LoginState{Key: key}

	failures, err := e.guard.AttemptCount(ctx, key)
	if err != nil {
		return LoginState{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	remaining, err := e.guard.RemainingLockTime(ctx, key)
	if err != nil {
		return LoginState{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	state.Failures = failures
	state.Locked = remaining > 0
	state.LockRemaining = remaining
	return state, nil
}

func (e *Engine) loginKey(ip, identifier string) string {
	return limiters.LoginKey(e.config.LoginGuard.KeyScope, ip, identifier)
}

func (e *Engine) tokenPair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    e.jwt.AccessTTL(),
	}
}

// keyFailure reports a signing-key deployment defect. It is logged at fatal
// level without exiting; the request still fails normally.
func (e *Engine) keyFailure(ctx context.Context, err error, op string) {
	e.metricInc(MetricKeyConfigError)

	fields := logrus.Fields{"op": op}
	var keyErr *jwt.KeyError
	if errors.As(err, &keyErr) {
		fields["kid"] = keyErr.KeyID
	}
	e.log.WithError(err).WithFields(fields).Log(logrus.FatalLevel, "signing key configuration error")

	e.emitAudit(ctx, auditEventKeyConfigError, false, "", "", err, func() map[string]string {
		return map[string]string{"op": op}
	})
}
