// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package health aggregates per-source connection signals into quality
// scores and exposes the read-only status surface consumed by external
// monitoring and by the connection supervisors' reconnect policy.
package health

import (
	"sync"
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
)

// State is a connection supervisor state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded"
	StateReconnecting State = "reconnecting"
	StateShuttingDown State = "shutting_down"
)

// stateOrdinal maps states to the gauge values documented in metrics.
func stateOrdinal(s State) float64 {
	switch s {
	case StateIdle:
		return 0
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateDegraded:
		return 3
	case StateReconnecting:
		return 4
	case StateShuttingDown:
		return 5
	}
	return -1
}

// ConnectionHealth is the health record for one upstream source. Created at
// supervisor start, destroyed only at process shutdown.
type ConnectionHealth struct {
	Source              string    `json:"source"`
	State               State     `json:"state"`
	ConnectedAt         time.Time `json:"connected_at,omitempty"`
	LastHeartbeatAt     time.Time `json:"last_heartbeat_at,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	QualityScore        float64   `json:"quality_score"`
	LastError           string    `json:"last_error,omitempty"`

	// HasHeartbeat is false for pure SSE delivery without ping frames; such
	// sources exclude the heartbeat-recency term from the quality formula.
	HasHeartbeat bool `json:"has_heartbeat"`
}

// Snapshot is the read-only aggregate exposed on the health-check surface.
type Snapshot struct {
	Live        bool               `json:"live"`
	Ready       bool               `json:"ready"`
	GeneratedAt time.Time          `json:"generated_at"`
	Sources     []ConnectionHealth `json:"sources"`
}

// Quality score weights. For sources without a heartbeat concept the
// heartbeat weight is redistributed proportionally over the remaining terms.
const (
	weightState     = 40.0
	weightHeartbeat = 40.0
	weightFailures  = 20.0

	// failureSaturation is the failure count at which the failure term
	// bottoms out.
	failureSaturation = 10
)

// Monitor tracks connection health records for all sources.
type Monitor struct {
	mu               sync.RWMutex
	sources          map[string]*ConnectionHealth
	heartbeatTimeout time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewMonitor creates a monitor. heartbeatTimeout is the same duration the
// supervisors use for degradation and bounds the heartbeat-recency term.
func NewMonitor(heartbeatTimeout time.Duration) *Monitor {
	return &Monitor{
		sources:          make(map[string]*ConnectionHealth),
		heartbeatTimeout: heartbeatTimeout,
		now:              time.Now,
	}
}

// Register creates the health record for a source. hasHeartbeat is false for
// sources with no ping/heartbeat concept (SSE).
func (m *Monitor) Register(source string, hasHeartbeat bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources[source] = &ConnectionHealth{
		Source:       source,
		State:        StateIdle,
		HasHeartbeat: hasHeartbeat,
	}
	metrics.ConnectionState.WithLabelValues(source).Set(stateOrdinal(StateIdle))
}

// SetState records a supervisor state transition.
func (m *Monitor) SetState(source string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sources[source]
	if !ok {
		return
	}
	h.State = state
	if state == StateConnected {
		now := m.now()
		h.ConnectedAt = now
		h.LastHeartbeatAt = now
		h.ConsecutiveFailures = 0
		h.LastError = ""
	}
	metrics.ConnectionState.WithLabelValues(source).Set(stateOrdinal(state))
}

// RecordHeartbeat refreshes the source's heartbeat timestamp. Called for
// every successfully received frame as well as transport-level pings.
func (m *Monitor) RecordHeartbeat(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.sources[source]; ok {
		h.LastHeartbeatAt = m.now()
	}
}

// RecordFailure increments the source's consecutive failure count.
func (m *Monitor) RecordFailure(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sources[source]
	if !ok {
		return
	}
	h.ConsecutiveFailures++
	if err != nil {
		h.LastError = err.Error()
	}
	metrics.ConnectionFailures.WithLabelValues(source).Inc()
}

// Score computes the current quality score (0..100) for a source.
func (m *Monitor) Score(source string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.sources[source]
	if !ok {
		return 0
	}
	return m.scoreLocked(h)
}

func (m *Monitor) scoreLocked(h *ConnectionHealth) float64 {
	var stateTerm float64
	switch h.State {
	case StateConnected:
		stateTerm = 1.0
	case StateDegraded:
		stateTerm = 0.5
	case StateConnecting, StateReconnecting:
		stateTerm = 0.25
	default:
		stateTerm = 0
	}

	failureTerm := 1.0 - float64(min(h.ConsecutiveFailures, failureSaturation))/failureSaturation

	if !h.HasHeartbeat {
		// No heartbeat concept: a healthy SSE connection must not be
		// penalized for silence. Renormalize over the remaining terms.
		total := weightState + weightFailures
		return clampScore((stateTerm*weightState + failureTerm*weightFailures) * 100 / total)
	}

	heartbeatTerm := 0.0
	if !h.LastHeartbeatAt.IsZero() {
		elapsed := m.now().Sub(h.LastHeartbeatAt)
		// Full credit while within the timeout, decaying to zero at twice it.
		switch {
		case elapsed <= m.heartbeatTimeout:
			heartbeatTerm = 1.0
		case elapsed < 2*m.heartbeatTimeout:
			heartbeatTerm = 1.0 - float64(elapsed-m.heartbeatTimeout)/float64(m.heartbeatTimeout)
		}
	}

	return clampScore(stateTerm*weightState + heartbeatTerm*weightHeartbeat + failureTerm*weightFailures)
}

// clampScore bounds a score to [0, 100]. The renormalized formula can land a
// float ulp above 100 otherwise.
func clampScore(score float64) float64 {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// Snapshot returns the aggregate status. Readiness requires every registered
// source to have reached Connected at least once and not be fully
// disconnected; liveness is true while the process responds at all.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Live:        true,
		Ready:       len(m.sources) > 0,
		GeneratedAt: m.now(),
		Sources:     make([]ConnectionHealth, 0, len(m.sources)),
	}

	for _, h := range m.sources {
		record := *h
		record.QualityScore = m.scoreLocked(h)
		metrics.QualityScore.WithLabelValues(h.Source).Set(record.QualityScore)
		snap.Sources = append(snap.Sources, record)

		switch h.State {
		case StateConnected, StateDegraded:
		default:
			snap.Ready = false
		}
	}
	return snap
}
