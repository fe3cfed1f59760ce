// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package pipeline

import (
	"strconv"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Tracker owns the tracking tables: which systems and characters the map
// currently cares about. Topology events are the only writers; the
// determination engine reads. Entries never expire (ttl 0) and are bounded
// only by the region cap.
type Tracker struct {
	store *cache.Store
}

// NewTracker creates a tracker backed by the shared cache.
func NewTracker(store *cache.Store) *Tracker {
	return &Tracker{store: store}
}

// Seed installs the statically configured tracking sets. Called once at
// startup, before any topology event is applied.
func (t *Tracker) Seed(systems []int32, characters []int64) {
	for _, id := range systems {
		t.store.Put(cache.RegionTrackedSystems, systemKey(id), &models.SystemInfo{SystemID: id}, 0)
	}
	for _, id := range characters {
		t.store.Put(cache.RegionTrackedCharacters, characterKey(id), &models.CharacterInfo{CharacterID: id}, 0)
	}
	if len(systems) > 0 || len(characters) > 0 {
		logging.Info().
			Int("systems", len(systems)).
			Int("characters", len(characters)).
			Msg("seeded tracking tables from config")
	}
}

// ApplyMapEvent mutates the tracking tables. Additions and updates replace
// the stored record; removals delete outright. Updates for unknown entities
// behave as additions, keeping the operation idempotent.
func (t *Tracker) ApplyMapEvent(evt *models.MapEvent) {
	metrics.TopologyEvents.WithLabelValues(string(evt.Type), string(evt.Entity)).Inc()

	switch evt.Entity {
	case models.MapEntitySystem:
		key := systemKey(evt.System.SystemID)
		if evt.Type == models.MapEventRemoved {
			t.store.Delete(cache.RegionTrackedSystems, key)
		} else {
			t.store.Put(cache.RegionTrackedSystems, key, evt.System, 0)
		}
		logging.Debug().
			Str("type", string(evt.Type)).
			Int32("system_id", evt.System.SystemID).
			Msg("tracking table updated")

	case models.MapEntityCharacter:
		key := characterKey(evt.Character.CharacterID)
		if evt.Type == models.MapEventRemoved {
			t.store.Delete(cache.RegionTrackedCharacters, key)
		} else {
			t.store.Put(cache.RegionTrackedCharacters, key, evt.Character, 0)
		}
		logging.Debug().
			Str("type", string(evt.Type)).
			Int64("character_id", evt.Character.CharacterID).
			Msg("tracking table updated")
	}
}

// IsTrackedSystem reports whether kills in the system are of interest.
func (t *Tracker) IsTrackedSystem(id int32) bool {
	_, ok := t.store.Get(cache.RegionTrackedSystems, systemKey(id))
	return ok
}

// IsTrackedCharacter reports whether the character is of interest.
func (t *Tracker) IsTrackedCharacter(id int64) bool {
	if id == 0 {
		return false
	}
	_, ok := t.store.Get(cache.RegionTrackedCharacters, characterKey(id))
	return ok
}

// TrackedSystem returns the stored record for a tracked system.
func (t *Tracker) TrackedSystem(id int32) (*models.SystemInfo, bool) {
	v, ok := t.store.Get(cache.RegionTrackedSystems, systemKey(id))
	if !ok {
		return nil, false
	}
	return v.(*models.SystemInfo), true
}

func systemKey(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func characterKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
