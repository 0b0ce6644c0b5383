package internaldefs

import (
	"strconv"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported from Engine.AuditDropped rather than the
// counter snapshot so it is present even with metrics disabled.
const (
	AuditDroppedName = "goidentity_audit_dropped_total"
	AuditDroppedHelp = "Auth events dropped because the audit buffer was full."
)

var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: goIdentity.MetricLoginLocked, Name: "goidentity_login_locked_total", Help: "Logins refused while the guard key was locked."},
	{ID: goIdentity.MetricLockoutApplied, Name: "goidentity_lockout_applied_total", Help: "Failed logins that left the guard key locked."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: goIdentity.MetricRefreshReuseDetected, Name: "goidentity_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Logouts."},
	{ID: goIdentity.MetricTokenValidated, Name: "goidentity_token_validated_total", Help: "Access tokens accepted by Validate."},
	{ID: goIdentity.MetricTokenRejected, Name: "goidentity_token_rejected_total", Help: "Access tokens rejected by Validate."},
	{ID: goIdentity.MetricTokenRevoked, Name: "goidentity_token_revoked_total", Help: "Blacklisted access tokens presented to Validate."},
	{ID: goIdentity.MetricKeyConfigError, Name: "goidentity_key_config_error_total", Help: "Signing key deployment errors."},
	{ID: goIdentity.MetricPermissionsResolved, Name: "goidentity_permissions_resolved_total", Help: "Permission resolutions."},
	{ID: goIdentity.MetricPermissionsFailure, Name: "goidentity_permissions_failure_total", Help: "Failed permission resolutions."},
	{ID: goIdentity.MetricRoleAssigned, Name: "goidentity_role_assigned_total", Help: "Role assignments."},
	{ID: goIdentity.MetricRoleRevoked, Name: "goidentity_role_revoked_total", Help: "Role revocations."},
	{ID: goIdentity.MetricRoleIncludeAdded, Name: "goidentity_role_include_added_total", Help: "Role include edges added."},
	{ID: goIdentity.MetricMembershipGranted, Name: "goidentity_membership_granted_total", Help: "Membership grants."},
	{ID: goIdentity.MetricMembershipCancelled, Name: "goidentity_membership_cancelled_total", Help: "Membership cancellations."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Validate latency."},
	{ID: goIdentity.MetricResolveLatency, Name: "goidentity_resolve_latency_seconds", Help: "Permission resolution latency."},
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(goIdentity.HistogramBucketBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(goIdentity.HistogramBucketBounds))
	for i, b := range goIdentity.HistogramBucketBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundLabels returns the le label of every bucket, ending with "+Inf".
func BoundLabels() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strconv.FormatFloat(b, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

// BoundSuffixes returns BoundLabels made safe for instrument names.
func BoundSuffixes() []string {
	labels := BoundLabels()
	out := make([]string, len(labels))
	for i, l := range labels {
		if l == "+Inf" {
			out[i] = "inf"
			continue
		}
		out[i] = strings.ReplaceAll(l, ".", "_")
	}
	return out
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
