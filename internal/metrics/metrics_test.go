// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherFamily collects a metric family by name from the default registry.
func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestCountersRegistered(t *testing.T) {
	// Touch a representative set of collectors so they materialize with at
	// least one child, then verify they show up in the default registry.
	EventsDuplicate.Inc()
	EventsStale.Inc()
	FramesReceived.WithLabelValues("killstream").Inc()
	CacheHits.WithLabelValues("dedup").Inc()
	DispatchesRouted.WithLabelValues("system-kill").Inc()

	names := []string{
		"notifier_events_duplicate_total",
		"notifier_events_stale_total",
		"notifier_frames_received_total",
		"notifier_cache_hits_total",
		"notifier_dispatches_routed_total",
	}
	for _, name := range names {
		if gatherFamily(t, name) == nil {
			t.Errorf("metric family %q not registered", name)
		}
	}
}

func TestConnectionStateGauge(t *testing.T) {
	ConnectionState.WithLabelValues("topology").Set(2)

	mf := gatherFamily(t, "notifier_connection_state")
	if mf == nil {
		t.Fatal("notifier_connection_state not registered")
	}

	found := false
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "source" && lp.GetValue() == "topology" {
				found = true
				if got := m.GetGauge().GetValue(); got != 2 {
					t.Errorf("expected gauge value 2, got %v", got)
				}
			}
		}
	}
	if !found {
		t.Error("expected topology source label on connection state gauge")
	}
}
