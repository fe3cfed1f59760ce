// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Channel identifies a downstream notification destination.
type Channel string

const (
	// ChannelSystemKill receives kills in tracked systems.
	ChannelSystemKill Channel = "system-kill"
	// ChannelCharacterKill receives kills involving tracked characters or
	// corporation-focus participants.
	ChannelCharacterKill Channel = "character-kill"
	// ChannelSystemTracking announces newly tracked systems.
	ChannelSystemTracking Channel = "system-tracking"
	// ChannelCharacterTracking announces newly tracked characters.
	ChannelCharacterTracking Channel = "character-tracking"
)

// Dispatch is a routed notification bound for a single channel.
// For a given (EventID, Channel) pair at most one Dispatch is ever produced
// inside the dedup window; the router performs no dedup of its own.
type Dispatch struct {
	DispatchID string   `json:"dispatch_id"`
	EventID    string   `json:"event_id"`
	Channel    Channel  `json:"channel"`
	Mention    bool     `json:"mention,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`

	Killmail  *Killmail      `json:"killmail,omitempty"`
	System    *SystemInfo    `json:"system,omitempty"`
	Character *CharacterInfo `json:"character,omitempty"`
}

// MarshalDispatch encodes a dispatch for the notification bus.
func MarshalDispatch(d *Dispatch) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch %s: %w", d.DispatchID, err)
	}
	return data, nil
}

// UnmarshalDispatch decodes a dispatch from the notification bus.
func UnmarshalDispatch(data []byte) (*Dispatch, error) {
	var d Dispatch
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal dispatch: %w", err)
	}
	if d.EventID == "" || d.Channel == "" {
		return nil, fmt.Errorf("dispatch missing event id or channel")
	}
	return &d, nil
}
