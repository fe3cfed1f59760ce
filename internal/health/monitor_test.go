// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package health

import (
	"errors"
	"testing"
	"time"
)

func newTestMonitor(timeout time.Duration) (*Monitor, *time.Time) {
	m := NewMonitor(timeout)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestScoreHealthyConnection(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	m.Register("killstream", true)
	m.SetState("killstream", StateConnected)

	if score := m.Score("killstream"); score != 100 {
		t.Errorf("expected perfect score for fresh connection, got %v", score)
	}
}

func TestScoreHeartbeatDecay(t *testing.T) {
	m, now := newTestMonitor(time.Minute)
	m.Register("killstream", true)
	m.SetState("killstream", StateConnected)

	// Within the timeout: full heartbeat credit.
	*now = now.Add(30 * time.Second)
	if score := m.Score("killstream"); score != 100 {
		t.Errorf("expected 100 within heartbeat timeout, got %v", score)
	}

	// Past twice the timeout: heartbeat term fully decayed, state and
	// failure terms remain.
	*now = now.Add(2 * time.Minute)
	score := m.Score("killstream")
	if score >= 100 || score != 60 {
		t.Errorf("expected 60 after heartbeat decay (state 40 + failures 20), got %v", score)
	}
}

func TestScoreExcludesHeartbeatForSSE(t *testing.T) {
	m, now := newTestMonitor(time.Minute)
	m.Register("topology", false)
	m.SetState("topology", StateConnected)

	// A quiet SSE connection stays at full score no matter how long since
	// the last frame.
	*now = now.Add(time.Hour)
	if score := m.Score("topology"); score != 100 {
		t.Errorf("expected silent SSE connection to keep score 100, got %v", score)
	}
}

func TestScoreFailurePenalty(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	m.Register("killstream", true)
	m.SetState("killstream", StateConnected)

	for i := 0; i < 5; i++ {
		m.RecordFailure("killstream", errors.New("read reset"))
	}

	score := m.Score("killstream")
	// state 40 + heartbeat 40 + failures 20*(1 - 5/10) = 90
	if score != 90 {
		t.Errorf("expected 90 with 5 consecutive failures, got %v", score)
	}

	// Failures saturate rather than driving the score negative.
	for i := 0; i < 50; i++ {
		m.RecordFailure("killstream", nil)
	}
	if score := m.Score("killstream"); score != 80 {
		t.Errorf("expected failure term to saturate at 80, got %v", score)
	}
}

func TestSetStateConnectedResetsFailures(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	m.Register("killstream", true)
	m.RecordFailure("killstream", errors.New("dial refused"))
	m.RecordFailure("killstream", errors.New("dial refused"))

	m.SetState("killstream", StateConnected)

	snap := m.Snapshot()
	if len(snap.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(snap.Sources))
	}
	rec := snap.Sources[0]
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("expected failures reset on connect, got %d", rec.ConsecutiveFailures)
	}
	if rec.LastHeartbeatAt.IsZero() {
		t.Error("expected last_heartbeat_at set on connect")
	}
	if rec.LastError != "" {
		t.Errorf("expected last error cleared, got %q", rec.LastError)
	}
}

func TestSnapshotReadiness(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	m.Register("killstream", true)
	m.Register("topology", false)

	if m.Snapshot().Ready {
		t.Error("expected not ready before any connection")
	}

	m.SetState("killstream", StateConnected)
	m.SetState("topology", StateConnecting)
	if m.Snapshot().Ready {
		t.Error("expected not ready while a source is still connecting")
	}

	m.SetState("topology", StateConnected)
	if !m.Snapshot().Ready {
		t.Error("expected ready with both sources connected")
	}

	// A degraded source stays ready; a reconnecting one does not.
	m.SetState("killstream", StateDegraded)
	if !m.Snapshot().Ready {
		t.Error("expected degraded source to remain ready")
	}
	m.SetState("killstream", StateReconnecting)
	if m.Snapshot().Ready {
		t.Error("expected reconnecting source to drop readiness")
	}
}

func TestSnapshotLiveness(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	if !m.Snapshot().Live {
		t.Error("liveness must hold while the process responds")
	}
}

func TestScoreUnknownSource(t *testing.T) {
	m, _ := newTestMonitor(time.Minute)
	if score := m.Score("nope"); score != 0 {
		t.Errorf("expected 0 for unknown source, got %v", score)
	}
}
