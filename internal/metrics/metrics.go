package metrics

import "sync/atomic"

// MetricID identifies one counter in the registry. IDs are dense so the
// registry can be a flat array of atomics.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricRegisterSuccess
	MetricRegisterConflict
	MetricEmailVerified
	MetricEmailChangeRequested
	MetricEmailChangeConfirmed
	MetricPasswordResetRequested
	MetricPasswordResetCompleted
	MetricPasswordChanged
	MetricDeletionRequested
	MetricDeletionCancelled
	MetricAccountsPurged
	MetricTokenIssued
	MetricTokenRotated
	MetricRefreshReuseBlocked
	MetricSessionCreated
	MetricSessionRevoked
	MetricSessionSwept
	MetricMailEnqueued
	MetricMailDropped

	MetricIDCount
)

// Config controls whether the registry records anything at all.
type Config struct {
	Enabled bool
}

// Metrics is a fixed-size registry of atomic counters. A nil or disabled
// registry is a no-op, so call sites never need to guard.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a registry. When cfg.Enabled is false every operation is a
// no-op and Snapshot returns an empty map.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter by one.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments the counter by delta.
func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(delta)
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: map[MetricID]uint64{}}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
