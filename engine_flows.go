package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/jwt"
)

func (e *Engine) flowDeps() flows.Deps {
	return flows.Deps{
		Login:    e.loginFlowDeps(),
		Refresh:  e.refreshFlowDeps(),
		Logout:   e.logoutFlowDeps(),
		Validate: e.validateFlowDeps(),
	}
}

func (e *Engine) flowAudit(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string) {
	e.emitAudit(ctx, event, success, userID, "", err, meta)
}

func (e *Engine) flowWarn(err error, msg string) {
	e.log.WithError(err).Warn(msg)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		LoginKey:  e.loginKey,
		MetricInc: e.flowMetricInc,
		EmitAudit: e.flowAudit,
		Warn:      e.flowWarn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			LoginLocked:    int(MetricLoginLocked),
			LockoutApplied: int(MetricLockoutApplied),
		},
		Events: flows.LoginEvents{
			LoginSuccess:   auditEventLoginSuccess,
			LoginFailure:   auditEventLoginFailure,
			LoginLocked:    auditEventLoginLocked,
			LockoutApplied: auditEventLockoutApplied,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrAuthenticationFailed,
			LoginLocked:        ErrLoginLocked,
			UserNotFound:       ErrUserNotFound,
		},
	}

	if e.guard != nil {
		deps.IsBlocked = e.guard.IsBlocked
		deps.RecordSuccess = e.guard.RecordSuccess
		deps.RecordFailure = func(ctx context.Context, key string) (flows.LoginAttempt, error) {
			state, err := e.guard.RecordFailure(ctx, key)
			if err != nil {
				return flows.LoginAttempt{}, err
			}
			return flows.LoginAttempt{
				Failures:      state.Failures,
				Locked:        state.Locked,
				LockRemaining: state.LockRemaining,
			}, nil
		}
	}
	if e.users != nil {
		deps.FindUser = func(ctx context.Context, identifier string) (flows.LoginUserRecord, error) {
			user, err := e.users.FindByIdentifier(ctx, identifier)
			if err != nil {
				return flows.LoginUserRecord{}, err
			}
			return toFlowUser(user), nil
		}
	}
	if e.verifier != nil {
		deps.VerifyPassword = func(ctx context.Context, user flows.LoginUserRecord, password string) (bool, error) {
			return e.verifier.VerifyCredentials(ctx, fromFlowUser(user), password)
		}
	}
	if e.jwt != nil {
		deps.IssueTokens = e.issueTokens
	}
	if e.sessions != nil {
		deps.SaveSession = e.sessions.Save
	}

	return deps
}

func (e *Engine) refreshFlowDeps() flows.RefreshDeps {
	deps := flows.RefreshDeps{
		MetricInc:      e.flowMetricInc,
		EmitAudit:      e.flowAudit,
		Warn:           e.flowWarn,
		EngineNotReady: ErrEngineNotReady,
		UserNotFound:   ErrUserNotFound,
		RefreshInvalid: ErrRefreshInvalid,
		RefreshReuse:   ErrRefreshReuse,
		Metrics: flows.RefreshMetrics{
			RefreshSuccess:       int(MetricRefreshSuccess),
			RefreshFailure:       int(MetricRefreshFailure),
			RefreshReuseDetected: int(MetricRefreshReuseDetected),
		},
		Events: flows.RefreshEvents{
			RefreshSuccess:       auditEventRefreshSuccess,
			RefreshInvalid:       auditEventRefreshInvalid,
			RefreshReuseDetected: auditEventRefreshReuseDetected,
		},
	}

	if e.jwt != nil {
		deps.ValidateRefresh = func(token string) (string, error) {
			claims, err := e.jwt.ValidateRefresh(token)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		}
		deps.IssueTokens = e.issueTokens
	}
	if e.users != nil {
		deps.FindUser = func(ctx context.Context, userID string) (flows.LoginUserRecord, error) {
			user, err := e.users.FindByID(ctx, userID)
			if err != nil {
				return flows.LoginUserRecord{}, err
			}
			return toFlowUser(user), nil
		}
	}
	if e.sessions != nil {
		deps.Rotate = e.sessions.Rotate
		deps.DeleteSession = e.sessions.Delete
	}

	return deps
}

func (e *Engine) logoutFlowDeps() flows.LogoutDeps {
	deps := flows.LogoutDeps{
		MetricInc:      e.flowMetricInc,
		EmitAudit:      e.flowAudit,
		Warn:           e.flowWarn,
		EngineNotReady: ErrEngineNotReady,
		LogoutMetric:   int(MetricLogout),
		LogoutEvent:    auditEventLogout,
	}

	if e.jwt != nil {
		deps.ParseAllowExpired = func(token string) (string, time.Duration, error) {
			claims, err := e.jwt.ParseAllowExpired(token)
			if err != nil {
				return "", 0, err
			}
			return claims.Subject, claims.Remaining(e.now()), nil
		}
	}
	if e.blacklist != nil {
		deps.Blacklist = e.blacklist.Add
	}
	if e.sessions != nil {
		deps.DeleteSession = e.sessions.Delete
	}

	return deps
}

func (e *Engine) validateFlowDeps() flows.ValidateDeps {
	deps := flows.ValidateDeps{
		Now:       e.now,
		MetricInc: e.flowMetricInc,
		Observe: func(d time.Duration) {
			e.metrics.Observe(MetricValidateLatency, d)
		},
		ValidatedMetric: int(MetricTokenValidated),
		RejectedMetric:  int(MetricTokenRejected),
		RevokedMetric:   int(MetricTokenRevoked),
	}

	if e.jwt != nil {
		deps.ParseAccess = e.jwt.Validate
	}
	if e.blacklist != nil {
		deps.IsBlacklisted = e.blacklist.IsBlacklisted
	}

	return deps
}

// issueTokens signs an access and a refresh token for user. With permission
// stores configured the access token carries the resolved roles and
// memberships; otherwise it carries the directory's roles.
func (e *Engine) issueTokens(ctx context.Context, user flows.LoginUserRecord) (string, string, error) {
	roles := user.Roles
	var memberships map[string]string

	if e.resolver != nil {
		view, err := e.resolver.ResolvePermissions(ctx, user.UserID)
		if err != nil {
			return "", "", err
		}
		roles = view.Roles
		if len(view.Memberships) > 0 {
			memberships = view.Memberships
		}
	}

	access, err := e.jwt.IssueAccess(user.UserID, roles, jwt.Profile{
		Email:       user.Email,
		Nickname:    user.Nickname,
		Username:    user.Username,
		Memberships: memberships,
	})
	if err != nil {
		return "", "", err
	}

	refresh, err := e.jwt.IssueRefresh(user.UserID)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func toFlowUser(u UserRecord) flows.LoginUserRecord {
	return flows.LoginUserRecord{
		UserID:       u.UserID,
		Identifier:   u.Identifier,
		Email:        u.Email,
		Nickname:     u.Nickname,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
	}
}

func fromFlowUser(u flows.LoginUserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		Identifier:   u.Identifier,
		Email:        u.Email,
		Nickname:     u.Nickname,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
	}
}
