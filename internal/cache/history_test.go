// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package cache

import (
	"fmt"
	"testing"
)

func TestHistoryCapEnforced(t *testing.T) {
	h := NewHistory(5)

	for i := 0; i < 20; i++ {
		h.Record(Sample{Operation: fmt.Sprintf("op-%d", i)})
		if h.Len() > 5 {
			t.Fatalf("history length %d exceeds cap", h.Len())
		}
	}
	if h.Len() != 5 {
		t.Errorf("expected 5 samples, got %d", h.Len())
	}
}

func TestHistorySnapshotOrder(t *testing.T) {
	h := NewHistory(3)

	for i := 0; i < 5; i++ {
		h.Record(Sample{Operation: fmt.Sprintf("op-%d", i)})
	}

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(snap))
	}
	// Oldest surviving sample first.
	want := []string{"op-2", "op-3", "op-4"}
	for i, s := range snap {
		if s.Operation != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.Operation)
		}
	}
}

func TestHistoryPartialSnapshot(t *testing.T) {
	h := NewHistory(10)
	h.Record(Sample{Operation: "a"})
	h.Record(Sample{Operation: "b"})

	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].Operation != "a" || snap[1].Operation != "b" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap[0].At.IsZero() {
		t.Error("expected samples to be timestamped")
	}
}

func TestHistoryDefaultCap(t *testing.T) {
	h := NewHistory(0)
	if h.Cap() != 500 {
		t.Errorf("expected default cap 500, got %d", h.Cap())
	}
}
