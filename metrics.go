package authcore

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterCompromised
	MetricLoginSuccess
	MetricLoginFailure
	MetricMFARequired
	MetricMFAFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricFamilyRevoked
	MetricLogout
	MetricMFAEnrollmentStarted
	MetricMFAEnrollmentCompleted
	MetricResetRequested
	MetricResetCompleted
	MetricResetFailure
	MetricBreachCheckPositive

	metricCount
)

// MetricDef describes one counter for exporters.
type MetricDef struct {
	ID   MetricID
	Name string
	Help string
}

// MetricDefs returns the stable counter catalogue in export order.
func MetricDefs() []MetricDef {
	return []MetricDef{
		{MetricRegisterSuccess, "authcore_register_success_total", "Successful user registrations."},
		{MetricRegisterDuplicate, "authcore_register_duplicate_total", "Registrations rejected for duplicate email."},
		{MetricRegisterCompromised, "authcore_register_compromised_total", "Registrations rejected by the breach check."},
		{MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
		{MetricLoginFailure, "authcore_login_failure_total", "Logins rejected with invalid credentials."},
		{MetricMFARequired, "authcore_mfa_required_total", "Logins challenged for a missing MFA code."},
		{MetricMFAFailure, "authcore_mfa_failure_total", "Rejected MFA codes."},
		{MetricRefreshSuccess, "authcore_refresh_success_total", "Successful refresh-token rotations."},
		{MetricRefreshFailure, "authcore_refresh_failure_total", "Rejected refresh attempts."},
		{MetricRefreshReuseDetected, "authcore_refresh_reuse_detected_total", "Refresh-token replays that triggered reuse detection."},
		{MetricFamilyRevoked, "authcore_family_revoked_total", "Token families revoked after reuse detection."},
		{MetricLogout, "authcore_logout_total", "Logouts."},
		{MetricMFAEnrollmentStarted, "authcore_mfa_enrollment_started_total", "MFA enrollments started."},
		{MetricMFAEnrollmentCompleted, "authcore_mfa_enrollment_completed_total", "MFA enrollments completed."},
		{MetricResetRequested, "authcore_reset_requested_total", "Password resets issued."},
		{MetricResetCompleted, "authcore_reset_completed_total", "Password resets completed."},
		{MetricResetFailure, "authcore_reset_failure_total", "Password resets rejected."},
		{MetricBreachCheckPositive, "authcore_breach_check_positive_total", "Breach lookups that reported a compromised password."},
	}
}

// Metrics is a fixed set of lock-free counters. All methods are safe for
// concurrent use.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics { return &Metrics{} }

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
