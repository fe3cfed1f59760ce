// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package pipeline

import (
	"github.com/google/uuid"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Router selects destination channels for determined events. Pure selection:
// no dedup (the engine committed the record already) and no delivery.
type Router struct {
	corporationFocus map[int64]struct{}
}

// NewRouter creates a router with the configured corporation-focus set.
func NewRouter(corporationFocus []int64) *Router {
	focus := make(map[int64]struct{}, len(corporationFocus))
	for _, id := range corporationFocus {
		focus[id] = struct{}{}
	}
	return &Router{corporationFocus: focus}
}

// Route maps a worthy killmail to its dispatches. A system match goes to the
// system-kill channel unless a participant belongs to a focus corporation, in
// which case the dispatch is redirected to the character-kill channel. At
// most one dispatch per channel per event.
func (r *Router) Route(km *models.Killmail, det Determination) []models.Dispatch {
	if !det.Worthy {
		return nil
	}

	focusHit := r.hasFocusParticipant(km)
	channels := make(map[models.Channel]struct{}, 2)

	if det.SystemMatch {
		ch := models.ChannelSystemKill
		if focusHit {
			ch = models.ChannelCharacterKill
		}
		channels[ch] = struct{}{}
	}
	if det.CharacterMatch || focusHit {
		channels[models.ChannelCharacterKill] = struct{}{}
	}

	dispatches := make([]models.Dispatch, 0, len(channels))
	for ch := range channels {
		dispatches = append(dispatches, models.Dispatch{
			DispatchID: uuid.NewString(),
			EventID:    km.EventID(),
			Channel:    ch,
			Mention:    det.Priority,
			Reasons:    det.Reasons,
			Killmail:   km,
		})
		metrics.DispatchesRouted.WithLabelValues(string(ch)).Inc()
	}
	return dispatches
}

// RouteMapEvent maps topology events to tracking announcements. Only
// additions notify; removals and updates mutate state silently.
func (r *Router) RouteMapEvent(evt *models.MapEvent) []models.Dispatch {
	if evt.Type != models.MapEventAdded {
		logging.Debug().
			Str("type", string(evt.Type)).
			Str("entity", string(evt.Entity)).
			Msg("topology event applied without announcement")
		return nil
	}

	d := models.Dispatch{
		DispatchID: uuid.NewString(),
		EventID:    evt.EventID(),
		Reasons:    []string{"tracking"},
	}
	switch evt.Entity {
	case models.MapEntitySystem:
		d.Channel = models.ChannelSystemTracking
		d.System = evt.System
	case models.MapEntityCharacter:
		d.Channel = models.ChannelCharacterTracking
		d.Character = evt.Character
	default:
		return nil
	}

	metrics.DispatchesRouted.WithLabelValues(string(d.Channel)).Inc()
	return []models.Dispatch{d}
}

func (r *Router) hasFocusParticipant(km *models.Killmail) bool {
	if len(r.corporationFocus) == 0 {
		return false
	}
	for _, p := range km.Participants() {
		if _, ok := r.corporationFocus[p.CorporationID]; ok {
			return true
		}
	}
	return false
}
