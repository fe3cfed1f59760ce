// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package pipeline

import (
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Determination is the engine's verdict on one killmail.
type Determination struct {
	Worthy  bool
	Reasons []string

	// Match detail consumed by the router's channel selection.
	SystemMatch    bool
	CharacterMatch bool
	Priority       bool
}

// EngineConfig holds the determination policy.
type EngineConfig struct {
	// DedupWindow is how long an event id suppresses repeats.
	DedupWindow time.Duration

	// MaxEventAge discards events that occurred too far in the past, such
	// as replays after a reconnect.
	MaxEventAge time.Duration

	// PriorityOnly restricts system-match worthiness to priority systems.
	// Character matches are unaffected.
	PriorityOnly bool

	// PrioritySystems flag kills for mention and, under PriorityOnly,
	// gate system-match worthiness.
	PrioritySystems []int32
}

// Engine decides whether an event is new, fresh, and notification-worthy.
// Dedup records are committed before worthiness is evaluated, so a retried
// duplicate can never dispatch twice; the cost is that a crash between commit
// and delivery loses that one notification.
type Engine struct {
	store    *cache.Store
	tracker  *Tracker
	cfg      EngineConfig
	priority map[int32]struct{}

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a determination engine.
func NewEngine(store *cache.Store, tracker *Tracker, cfg EngineConfig) *Engine {
	priority := make(map[int32]struct{}, len(cfg.PrioritySystems))
	for _, id := range cfg.PrioritySystems {
		priority[id] = struct{}{}
	}
	return &Engine{
		store:    store,
		tracker:  tracker,
		cfg:      cfg,
		priority: priority,
		now:      time.Now,
	}
}

// Deduplicate commits a dedup record for the event id and reports whether the
// id was already present inside the window. The record is written even for
// events later found stale or unworthy, so repeats short-circuit sooner.
func (e *Engine) Deduplicate(eventID string) bool {
	if _, seen := e.store.Get(cache.RegionDedup, eventID); seen {
		return true
	}
	e.store.Put(cache.RegionDedup, eventID, true, e.cfg.DedupWindow)
	return false
}

// Determine runs the full pipeline decision for a killmail: dedup, staleness,
// then worthiness against the tracking tables. Idempotent given identical
// cache state; never mutates the tracking tables.
func (e *Engine) Determine(km *models.Killmail) Determination {
	eventID := km.EventID()

	if e.Deduplicate(eventID) {
		metrics.EventsDuplicate.Inc()
		logging.Debug().Str("event_id", eventID).Msg("duplicate event suppressed")
		return Determination{Reasons: []string{"duplicate"}}
	}

	if age := e.now().Sub(km.OccurredAt); age > e.cfg.MaxEventAge {
		metrics.EventsStale.Inc()
		logging.Debug().
			Str("event_id", eventID).
			Dur("age", age).
			Msg("stale event discarded")
		return Determination{Reasons: []string{"stale"}}
	}

	var det Determination
	_, det.Priority = e.priority[km.SystemID]

	if e.tracker.IsTrackedSystem(km.SystemID) {
		if !e.cfg.PriorityOnly || det.Priority {
			det.SystemMatch = true
			det.Reasons = append(det.Reasons, "system")
			metrics.EventsWorthy.WithLabelValues("system").Inc()
		}
	}

	for _, p := range km.Participants() {
		if e.tracker.IsTrackedCharacter(p.CharacterID) {
			det.CharacterMatch = true
			det.Reasons = append(det.Reasons, "character")
			metrics.EventsWorthy.WithLabelValues("character").Inc()
			break
		}
	}

	if det.Priority && (det.SystemMatch || det.CharacterMatch) {
		det.Reasons = append(det.Reasons, "priority")
		metrics.EventsWorthy.WithLabelValues("priority").Inc()
	}

	det.Worthy = det.SystemMatch || det.CharacterMatch
	if !det.Worthy {
		metrics.EventsUnmatched.Inc()
	}
	return det
}
