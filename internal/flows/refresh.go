package flows

import (
	"context"
	"errors"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureUserGone
	RefreshFailureUserLookup
	RefreshFailureIssue
	RefreshFailureRotate
	RefreshFailureReuse
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
}

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess       string
	RefreshInvalid       string
	RefreshReuseDetected string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	// ValidateRefresh verifies the token and returns its subject.
	ValidateRefresh func(string) (string, error)
	FindUser        func(context.Context, string) (LoginUserRecord, error)
	IssueTokens     func(context.Context, LoginUserRecord) (string, string, error)
	// Rotate is the session compare-and-swap; false means another caller
	// already replaced the stored token.
	Rotate        func(context.Context, string, string, string) (bool, error)
	DeleteSession func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)
	Warn      func(err error, msg string)

	EngineNotReady error
	UserNotFound   error
	RefreshInvalid error
	RefreshReuse   error

	Metrics RefreshMetrics
	Events  RefreshEvents
}

// RunRefresh verifies the presented refresh token, issues a new pair and
// swaps the stored token with a single compare-and-swap. Losing the swap is
// reported as reuse; the caller must re-authenticate and nothing is retried.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(error, string) {}
	}
	if deps.ValidateRefresh == nil ||
		deps.FindUser == nil ||
		deps.IssueTokens == nil ||
		deps.Rotate == nil ||
		deps.DeleteSession == nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: deps.EngineNotReady}
	}

	userID, err := deps.ValidateRefresh(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, "", err, nil)
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}

	user, err := deps.FindUser(ctx, userID)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if delErr := deps.DeleteSession(ctx, userID); delErr != nil {
				deps.Warn(delErr, "session cleanup for removed user failed")
			}
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, userID, deps.RefreshInvalid, func() map[string]string {
				return map[string]string{"reason": "user_not_found"}
			})
			return RefreshResult{Failure: RefreshFailureUserGone, Err: err, UserID: userID}
		}
		return RefreshResult{Failure: RefreshFailureUserLookup, Err: err, UserID: userID}
	}

	access, next, err := deps.IssueTokens(ctx, user)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID}
	}

	swapped, err := deps.Rotate(ctx, userID, refreshToken, next)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID}
	}
	if !swapped {
		deps.MetricInc(deps.Metrics.RefreshReuseDetected)
		deps.EmitAudit(ctx, deps.Events.RefreshReuseDetected, false, userID, deps.RefreshReuse, nil)
		return RefreshResult{Failure: RefreshFailureReuse, Err: deps.RefreshReuse, UserID: userID}
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, userID, nil, nil)

	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: next,
	}
}
