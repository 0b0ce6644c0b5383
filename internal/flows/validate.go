package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureToken
	ValidateFailureBlacklistUnavailable
	ValidateFailureRevoked
)

// ValidateResult carries the verified claims or the failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures validate flow dependencies.
type ValidateDeps struct {
	ParseAccess   func(string) (*jwt.AccessClaims, error)
	IsBlacklisted func(context.Context, string) (bool, error)
	Now           func() time.Time

	MetricInc func(int)
	Observe   func(time.Duration)

	ValidatedMetric int
	RejectedMetric  int
	RevokedMetric   int
}

// RunValidate verifies signature and claims, then consults the blacklist.
// A blacklist read error denies the token.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Observe == nil {
		deps.Observe = func(time.Duration) {}
	}

	start := deps.Now()
	defer func() { deps.Observe(deps.Now().Sub(start)) }()

	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		deps.MetricInc(deps.RejectedMetric)
		return ValidateResult{Failure: ValidateFailureToken, Err: err}
	}

	revoked, err := deps.IsBlacklisted(ctx, tokenStr)
	if err != nil {
		deps.MetricInc(deps.RejectedMetric)
		return ValidateResult{Failure: ValidateFailureBlacklistUnavailable, Err: err}
	}
	if revoked {
		deps.MetricInc(deps.RevokedMetric)
		return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
	}

	deps.MetricInc(deps.ValidatedMetric)
	return ValidateResult{Failure: ValidateFailureNone, Claims: claims}
}
