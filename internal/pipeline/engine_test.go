// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package pipeline

import (
	"slices"
	"testing"
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

func newTestEngine(t *testing.T, cfg EngineConfig, systems []int32, characters []int64) *Engine {
	t.Helper()
	store := testStore(t)
	tr := NewTracker(store)
	tr.Seed(systems, characters)
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 30 * time.Minute
	}
	if cfg.MaxEventAge == 0 {
		cfg.MaxEventAge = time.Hour
	}
	return NewEngine(store, tr, cfg)
}

func freshKillmail(id int64, systemID int32, victim int64) *models.Killmail {
	return &models.Killmail{
		ID:         id,
		SystemID:   systemID,
		OccurredAt: time.Now().Add(-time.Minute),
		Victim:     models.Entity{CharacterID: victim},
	}
}

func TestDetermineTrackedSystem(t *testing.T) {
	e := newTestEngine(t, EngineConfig{}, []int32{30000142}, nil)

	det := e.Determine(freshKillmail(1001, 30000142, 55))
	if !det.Worthy || !det.SystemMatch {
		t.Fatalf("determination = %+v, want worthy system match", det)
	}
	if !slices.Contains(det.Reasons, "system") {
		t.Errorf("reasons = %v, want to include system", det.Reasons)
	}
}

func TestDetermineDuplicateSuppressed(t *testing.T) {
	e := newTestEngine(t, EngineConfig{}, []int32{30000142}, nil)

	first := e.Determine(freshKillmail(1001, 30000142, 55))
	if !first.Worthy {
		t.Fatal("first determination should be worthy")
	}
	second := e.Determine(freshKillmail(1001, 30000142, 55))
	if second.Worthy {
		t.Error("replay within dedup window must not be worthy")
	}
	if !slices.Contains(second.Reasons, "duplicate") {
		t.Errorf("reasons = %v, want duplicate", second.Reasons)
	}
}

func TestDetermineStaleDiscarded(t *testing.T) {
	e := newTestEngine(t, EngineConfig{MaxEventAge: time.Hour}, []int32{30000142}, nil)

	km := freshKillmail(2002, 30000142, 55)
	km.OccurredAt = time.Now().Add(-2 * time.Hour)

	det := e.Determine(km)
	if det.Worthy {
		t.Error("stale event must never be worthy regardless of tracking match")
	}
	if !slices.Contains(det.Reasons, "stale") {
		t.Errorf("reasons = %v, want stale", det.Reasons)
	}
}

func TestDetermineTrackedCharacter(t *testing.T) {
	e := newTestEngine(t, EngineConfig{}, nil, []int64{55})

	// Victim match.
	det := e.Determine(freshKillmail(3001, 31000001, 55))
	if !det.Worthy || !det.CharacterMatch || det.SystemMatch {
		t.Errorf("victim match determination = %+v", det)
	}

	// Attacker match.
	km := freshKillmail(3002, 31000001, 99)
	km.Attackers = []models.Entity{{CharacterID: 1}, {CharacterID: 55}}
	det = e.Determine(km)
	if !det.Worthy || !det.CharacterMatch {
		t.Errorf("attacker match determination = %+v", det)
	}
}

func TestDetermineUnmatched(t *testing.T) {
	e := newTestEngine(t, EngineConfig{}, []int32{30000142}, []int64{55})

	det := e.Determine(freshKillmail(4001, 31000001, 99))
	if det.Worthy || len(det.Reasons) != 0 {
		t.Errorf("unmatched determination = %+v", det)
	}
}

func TestDeterminePriorityMention(t *testing.T) {
	e := newTestEngine(t, EngineConfig{PrioritySystems: []int32{30000142}}, []int32{30000142}, nil)

	det := e.Determine(freshKillmail(5001, 30000142, 55))
	if !det.Worthy || !det.Priority {
		t.Fatalf("determination = %+v, want priority", det)
	}
	if !slices.Contains(det.Reasons, "priority") {
		t.Errorf("reasons = %v, want priority", det.Reasons)
	}
}

func TestDeterminePriorityOnly(t *testing.T) {
	e := newTestEngine(t, EngineConfig{
		PriorityOnly:    true,
		PrioritySystems: []int32{30000142},
	}, []int32{30000142, 30002187}, []int64{55})

	// Tracked but non-priority system: system match is gated off.
	det := e.Determine(freshKillmail(6001, 30002187, 99))
	if det.Worthy {
		t.Errorf("non-priority system kill worthy under priority_only: %+v", det)
	}

	// Priority system still matches.
	det = e.Determine(freshKillmail(6002, 30000142, 99))
	if !det.Worthy || !det.SystemMatch {
		t.Errorf("priority system kill = %+v", det)
	}

	// Character matches are unaffected by priority_only.
	det = e.Determine(freshKillmail(6003, 30002187, 55))
	if !det.Worthy || !det.CharacterMatch {
		t.Errorf("character match under priority_only = %+v", det)
	}
}

func TestDedupWindowExpiry(t *testing.T) {
	e := newTestEngine(t, EngineConfig{DedupWindow: 50 * time.Millisecond}, []int32{30000142}, nil)

	if e.Deduplicate("evt-1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !e.Deduplicate("evt-1") {
		t.Fatal("second sighting inside window not suppressed")
	}

	time.Sleep(80 * time.Millisecond)
	if e.Deduplicate("evt-1") {
		t.Error("sighting after window expiry reported as duplicate")
	}
}
