package flows

import (
	"context"
	"time"
)

// LogoutFailureKind classifies logout flow failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureParse
	LogoutFailureBlacklist
)

// LogoutResult reports the outcome of RunLogout.
type LogoutResult struct {
	Failure   LogoutFailureKind
	Err       error
	UserID    string
	Remaining time.Duration
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	// ParseAllowExpired verifies the access token and returns its subject
	// and remaining lifetime; an expired token yields zero remaining.
	ParseAllowExpired func(string) (string, time.Duration, error)
	Blacklist         func(context.Context, string, time.Duration) error
	DeleteSession     func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)
	Warn      func(err error, msg string)

	EngineNotReady error
	LogoutMetric   int
	LogoutEvent    string
}

// RunLogout blacklists the access token for the rest of its life and drops
// the user's refresh record. A failed session delete is logged, not
// returned: the access token is already revoked.
func RunLogout(ctx context.Context, accessToken string, deps LogoutDeps) LogoutResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(error, string) {}
	}
	if deps.ParseAllowExpired == nil || deps.Blacklist == nil || deps.DeleteSession == nil {
		return LogoutResult{Failure: LogoutFailureParse, Err: deps.EngineNotReady}
	}

	userID, remaining, err := deps.ParseAllowExpired(accessToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureParse, Err: err}
	}

	if err := deps.Blacklist(ctx, accessToken, remaining); err != nil {
		return LogoutResult{Failure: LogoutFailureBlacklist, Err: err, UserID: userID}
	}

	if err := deps.DeleteSession(ctx, userID); err != nil {
		deps.Warn(err, "refresh session delete failed during logout")
	}

	deps.MetricInc(deps.LogoutMetric)
	deps.EmitAudit(ctx, deps.LogoutEvent, true, userID, nil, nil)

	return LogoutResult{Failure: LogoutFailureNone, UserID: userID, Remaining: remaining}
}
