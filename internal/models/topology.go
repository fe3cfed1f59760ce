// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MapEventType is the topology action.
type MapEventType string

const (
	MapEventAdded   MapEventType = "added"
	MapEventRemoved MapEventType = "removed"
	MapEventUpdated MapEventType = "updated"
)

// MapEntityKind is the tracked entity kind a topology event refers to.
type MapEntityKind string

const (
	MapEntitySystem    MapEntityKind = "system"
	MapEntityCharacter MapEntityKind = "character"
)

// SystemInfo describes a tracked solar system.
type SystemInfo struct {
	SystemID  int32     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Region    string    `json:"region,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CharacterInfo describes a tracked character.
type CharacterInfo struct {
	CharacterID   int64     `json:"id"`
	Name          string    `json:"name,omitempty"`
	CorporationID int64     `json:"corporation_id,omitempty"`
	AllianceID    int64     `json:"alliance_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// MapEvent is a decoded topology event. Exactly one of System/Character is
// set, matching Entity.
type MapEvent struct {
	Type      MapEventType   `json:"type"`
	Entity    MapEntityKind  `json:"entity"`
	System    *SystemInfo    `json:"system,omitempty"`
	Character *CharacterInfo `json:"character,omitempty"`
}

// mapFrame mirrors the topology wire format.
type mapFrame struct {
	Type    string          `json:"type"`
	Entity  string          `json:"entity"`
	Payload json.RawMessage `json:"payload"`
}

// ParseMapEvent decodes a topology frame into a tagged MapEvent.
func ParseMapEvent(payload []byte) (*MapEvent, error) {
	var frame mapFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("decode topology frame: %w", err)
	}

	evtType := MapEventType(frame.Type)
	switch evtType {
	case MapEventAdded, MapEventRemoved, MapEventUpdated:
	default:
		return nil, fmt.Errorf("topology frame: unknown type %q", frame.Type)
	}

	evt := &MapEvent{Type: evtType, Entity: MapEntityKind(frame.Entity)}
	now := time.Now().UTC()

	switch evt.Entity {
	case MapEntitySystem:
		var sys SystemInfo
		if err := json.Unmarshal(frame.Payload, &sys); err != nil {
			return nil, fmt.Errorf("decode system payload: %w", err)
		}
		if sys.SystemID == 0 {
			return nil, fmt.Errorf("topology frame: system payload missing id")
		}
		sys.UpdatedAt = now
		evt.System = &sys
	case MapEntityCharacter:
		var ch CharacterInfo
		if err := json.Unmarshal(frame.Payload, &ch); err != nil {
			return nil, fmt.Errorf("decode character payload: %w", err)
		}
		if ch.CharacterID == 0 {
			return nil, fmt.Errorf("topology frame: character payload missing id")
		}
		ch.UpdatedAt = now
		evt.Character = &ch
	default:
		return nil, fmt.Errorf("topology frame: unknown entity %q", frame.Entity)
	}

	return evt, nil
}

// EventID returns the natural dedup key: action plus entity id.
func (e *MapEvent) EventID() string {
	switch e.Entity {
	case MapEntitySystem:
		return fmt.Sprintf("map:%s:system:%d", e.Type, e.System.SystemID)
	case MapEntityCharacter:
		return fmt.Sprintf("map:%s:character:%d", e.Type, e.Character.CharacterID)
	}
	return fmt.Sprintf("map:%s:unknown", e.Type)
}
