// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package models defines the data model shared across the pipeline: event
// envelopes, killmails, topology events, and channel dispatches.
//
// Frames are decoded exactly once at the connection boundary into these typed
// structs and never passed onward as untyped maps.
package models

import (
	"fmt"
	"time"
)

// Source identifies which upstream a frame arrived from.
type Source string

const (
	// SourceKillstream is the persistent killmail stream.
	SourceKillstream Source = "killstream"
	// SourceTopology is the map topology stream (tracked systems/characters).
	SourceTopology Source = "topology"
)

// Envelope wraps a raw frame with its dedup identity and receipt metadata.
// Immutable once constructed; owned exclusively by the pipeline stage
// currently processing it.
type Envelope struct {
	// EventID is the natural dedup key: the killmail id for killstream
	// frames, or action+entity id for topology frames.
	EventID    string    `json:"event_id"`
	Source     Source    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    []byte    `json:"payload"`
}

// NewEnvelope constructs an envelope stamped with the current time.
func NewEnvelope(eventID string, source Source, payload []byte) Envelope {
	return Envelope{
		EventID:    eventID,
		Source:     source,
		ReceivedAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Validate checks the envelope carries the minimum required identity.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("envelope: missing event_id")
	}
	if e.Source != SourceKillstream && e.Source != SourceTopology {
		return fmt.Errorf("envelope: unknown source %q", e.Source)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope: empty payload")
	}
	return nil
}
