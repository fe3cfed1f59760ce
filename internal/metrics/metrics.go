// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package metrics exposes Prometheus collectors for the notifier pipeline.
//
// Instrumented areas:
//   - Streaming connections (state, reconnects, heartbeats, frames)
//   - Pipeline decisions (dedup, stale drops, worthiness)
//   - Bounded cache regions (hits, misses, evictions, size)
//   - Enrichment and delivery outcomes
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics

	// ConnectionState reports the supervisor state per source:
	// 0=idle 1=connecting 2=connected 3=degraded 4=reconnecting 5=shutting_down
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_connection_state",
			Help: "Current connection supervisor state per source",
		},
		[]string{"source"},
	)

	ConnectionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_connection_reconnects_total",
			Help: "Total number of reconnect attempts per source",
		},
		[]string{"source"},
	)

	ConnectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_connection_failures_total",
			Help: "Total number of transport failures per source",
		},
		[]string{"source"},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_frames_received_total",
			Help: "Total number of frames received per source",
		},
		[]string{"source"},
	)

	FrameParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_frame_parse_errors_total",
			Help: "Total number of malformed frames dropped per source",
		},
		[]string{"source"},
	)

	QualityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_connection_quality_score",
			Help: "Derived 0-100 connection quality score per source",
		},
		[]string{"source"},
	)

	// Pipeline metrics

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_ingest_queue_depth",
			Help: "Current number of events waiting in the ingest queue",
		},
		[]string{"source"},
	)

	QueueDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_ingest_queue_dropped_total",
			Help: "Total number of events dropped from a full ingest queue",
		},
		[]string{"source"},
	)

	EventsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_events_duplicate_total",
			Help: "Total number of events suppressed by the dedup window",
		},
	)

	EventsStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_events_stale_total",
			Help: "Total number of events discarded for exceeding max event age",
		},
	)

	EventsWorthy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_worthy_total",
			Help: "Total number of notification-worthy decisions by match reason",
		},
		[]string{"reason"}, // "system", "character", "priority"
	)

	EventsUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_events_unmatched_total",
			Help: "Total number of events that matched no tracking criteria",
		},
	)

	TopologyEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_topology_events_total",
			Help: "Total number of topology events applied",
		},
		[]string{"type", "entity"}, // type: added/removed/updated, entity: system/character
	)

	// Cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_cache_hits_total",
			Help: "Total number of cache hits per region",
		},
		[]string{"region"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_cache_misses_total",
			Help: "Total number of cache misses per region",
		},
		[]string{"region"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_cache_evictions_total",
			Help: "Total number of capacity evictions per region",
		},
		[]string{"region"},
	)

	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_cache_expirations_total",
			Help: "Total number of TTL expirations per region",
		},
		[]string{"region"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_cache_entries",
			Help: "Current number of resident entries per region",
		},
		[]string{"region"},
	)

	// Enrichment metrics

	EnrichmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_enrichment_outcomes_total",
			Help: "Total number of enrichment attempts by outcome",
		},
		[]string{"outcome"}, // "enriched", "skipped", "failed", "timeout"
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_enrichment_duration_seconds",
			Help:    "Duration of enrichment lookups in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
	)

	// Delivery metrics

	DispatchesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_routed_total",
			Help: "Total number of channel dispatches produced by the router",
		},
		[]string{"channel"},
	)

	DispatchesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_sent_total",
			Help: "Total number of dispatches delivered by outcome",
		},
		[]string{"channel", "outcome"}, // outcome: "success", "failure"
	)

	DispatchesPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_poisoned_total",
			Help: "Total number of dispatches routed to the poison topic",
		},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_delivery_duration_seconds",
			Help:    "Duration of delivery attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// Circuit breaker metrics

	// CircuitBreakerState reports 0=closed 1=half-open 2=open per breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
