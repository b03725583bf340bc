package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nearbyhub/authcore/internal/metrics"
)

// Source is anything that can produce a counter snapshot. Both the
// account service's Metrics() and a bare registry satisfy it.
type Source interface {
	Snapshot() metrics.Snapshot
}

type counterDef struct {
	id   metrics.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{metrics.MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
	{metrics.MetricLoginFailure, "authcore_login_failure_total", "Failed login attempts."},
	{metrics.MetricLoginLocked, "authcore_login_locked_total", "Logins rejected by the lockout window."},
	{metrics.MetricRegisterSuccess, "authcore_register_success_total", "Accounts created."},
	{metrics.MetricRegisterConflict, "authcore_register_conflict_total", "Registrations rejected for duplicate email."},
	{metrics.MetricEmailVerified, "authcore_email_verified_total", "Email addresses verified."},
	{metrics.MetricEmailChangeRequested, "authcore_email_change_requested_total", "Email changes started."},
	{metrics.MetricEmailChangeConfirmed, "authcore_email_change_confirmed_total", "Email changes confirmed."},
	{metrics.MetricPasswordResetRequested, "authcore_password_reset_requested_total", "Password resets started."},
	{metrics.MetricPasswordResetCompleted, "authcore_password_reset_completed_total", "Password resets completed."},
	{metrics.MetricPasswordChanged, "authcore_password_changed_total", "Passwords changed by logged-in users."},
	{metrics.MetricDeletionRequested, "authcore_deletion_requested_total", "Account deletions requested."},
	{metrics.MetricDeletionCancelled, "authcore_deletion_cancelled_total", "Account deletions cancelled inside the grace period."},
	{metrics.MetricAccountsPurged, "authcore_accounts_purged_total", "Accounts removed by the purge job."},
	{metrics.MetricTokenIssued, "authcore_token_issued_total", "Access tokens issued."},
	{metrics.MetricTokenRotated, "authcore_token_rotated_total", "Refresh tokens rotated."},
	{metrics.MetricRefreshReuseBlocked, "authcore_refresh_reuse_blocked_total", "Refresh rotations lost to an earlier concurrent rotation."},
	{metrics.MetricSessionCreated, "authcore_session_created_total", "Sessions created."},
	{metrics.MetricSessionRevoked, "authcore_session_revoked_total", "Sessions revoked."},
	{metrics.MetricSessionSwept, "authcore_session_swept_total", "Expired session index entries swept."},
	{metrics.MetricMailEnqueued, "authcore_mail_enqueued_total", "Messages accepted by the mail outbox."},
	{metrics.MetricMailDropped, "authcore_mail_dropped_total", "Messages dropped by a full mail outbox."},
}

// Exporter adapts the flat counter registry to a prometheus.Collector.
// Counters are read as a snapshot on every scrape; nothing is registered
// globally — callers add the Exporter to their own registry.
type Exporter struct {
	source Source
	descs  map[metrics.MetricID]*prometheus.Desc
}

// NewExporter wraps source. Register the result with a prometheus
// registry and mount promhttp on it.
func NewExporter(source Source) *Exporter {
	descs := make(map[metrics.MetricID]*prometheus.Desc, len(counterDefs))
	for _, def := range counterDefs {
		descs[def.id] = prometheus.NewDesc(def.name, def.help, nil, nil)
	}
	return &Exporter{source: source, descs: descs}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range e.descs {
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.source.Snapshot()
	for _, def := range counterDefs {
		ch <- prometheus.MustNewConstMetric(
			e.descs[def.id],
			prometheus.CounterValue,
			float64(snap.Counters[def.id]),
		)
	}
}
