// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Entity identifies a killmail participant. Any of the ids may be zero when
// the upstream record does not carry them (NPC attackers, structures).
type Entity struct {
	CharacterID   int64 `json:"character_id,omitempty"`
	CorporationID int64 `json:"corporation_id,omitempty"`
	AllianceID    int64 `json:"alliance_id,omitempty"`
	ShipTypeID    int32 `json:"ship_type_id,omitempty"`

	// Enrichment fields, populated in place by the enrichment gate.
	CharacterName   string `json:"character_name,omitempty"`
	CorporationName string `json:"corporation_name,omitempty"`
	AllianceName    string `json:"alliance_name,omitempty"`
	ShipName        string `json:"ship_name,omitempty"`
}

// Item is a dropped or destroyed item on a killmail.
type Item struct {
	TypeID            int32   `json:"item_type_id"`
	QuantityDropped   int64   `json:"quantity_dropped,omitempty"`
	QuantityDestroyed int64   `json:"quantity_destroyed,omitempty"`
	Value             float64 `json:"value,omitempty"`
}

// Killmail is a parsed ship-destruction record. It is enriched in place
// (additional fields populated, never replaced) and never mutated after it
// leaves the notification router.
type Killmail struct {
	ID         int64     `json:"killmail_id"`
	SystemID   int32     `json:"system_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Victim     Entity    `json:"victim"`
	Attackers  []Entity  `json:"attackers"`
	ValueISK   float64   `json:"value"`
	Items      []Item    `json:"items,omitempty"`

	// SystemName is populated by enrichment.
	SystemName string `json:"system_name,omitempty"`
}

// killstreamFrame mirrors the wire format of a pre-enriched killstream frame.
// occurred_at tolerates both RFC3339 strings and unix seconds.
type killstreamFrame struct {
	ID         int64           `json:"id"`
	KillmailID int64           `json:"killmail_id"`
	SystemID   int32           `json:"system_id"`
	OccurredAt json.RawMessage `json:"occurred_at"`
	Victim     Entity          `json:"victim"`
	Attackers  []Entity        `json:"attackers"`
	Value      float64         `json:"value"`
	Items      []Item          `json:"items"`
}

// ParseKillmail decodes a killstream frame into a Killmail.
// Malformed frames return an error; the caller drops the frame without
// tearing down the connection.
func ParseKillmail(payload []byte) (*Killmail, error) {
	var frame killstreamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("decode killmail frame: %w", err)
	}

	id := frame.ID
	if id == 0 {
		id = frame.KillmailID
	}
	if id == 0 {
		return nil, fmt.Errorf("killmail frame missing id")
	}
	if frame.SystemID == 0 {
		return nil, fmt.Errorf("killmail %d missing system_id", id)
	}

	occurredAt, err := parseTimestamp(frame.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("killmail %d: %w", id, err)
	}

	return &Killmail{
		ID:         id,
		SystemID:   frame.SystemID,
		OccurredAt: occurredAt,
		Victim:     frame.Victim,
		Attackers:  frame.Attackers,
		ValueISK:   frame.Value,
		Items:      frame.Items,
	}, nil
}

// EventID returns the natural dedup key for this killmail.
func (k *Killmail) EventID() string {
	return strconv.FormatInt(k.ID, 10)
}

// Participants returns the victim plus all attackers.
func (k *Killmail) Participants() []Entity {
	out := make([]Entity, 0, len(k.Attackers)+1)
	out = append(out, k.Victim)
	out = append(out, k.Attackers...)
	return out
}

// parseTimestamp accepts RFC3339 strings or unix seconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("missing occurred_at")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse occurred_at %q: %w", s, err)
		}
		return ts.UTC(), nil
	}

	var unix int64
	if err := json.Unmarshal(raw, &unix); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized occurred_at format")
}
