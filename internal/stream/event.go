// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package stream owns the two upstream streaming connections: the killmail
// stream (WebSocket) and the map topology stream (SSE). A Supervisor per
// source manages connect/reconnect with exponential backoff, heartbeat-based
// health, and hands decoded events to the pipeline through a bounded queue.
package stream

import (
	"fmt"

	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Event is a frame decoded once at the connection boundary. Exactly one of
// Killmail/MapEvent is set, matching the envelope source.
type Event struct {
	Envelope models.Envelope
	Killmail *models.Killmail
	MapEvent *models.MapEvent
}

// Decoder turns a raw frame into a typed Event. Decode failures drop the
// frame without tearing down the connection.
type Decoder func(frame []byte) (Event, error)

// DecodeKillmail is the Decoder for killstream frames.
func DecodeKillmail(frame []byte) (Event, error) {
	km, err := models.ParseKillmail(frame)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Envelope: models.NewEnvelope(km.EventID(), models.SourceKillstream, frame),
		Killmail: km,
	}, nil
}

// DecodeMapEvent is the Decoder for topology frames.
func DecodeMapEvent(frame []byte) (Event, error) {
	evt, err := models.ParseMapEvent(frame)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Envelope: models.NewEnvelope(evt.EventID(), models.SourceTopology, frame),
		MapEvent: evt,
	}, nil
}

// Validate checks the decoded event is internally consistent.
func (e Event) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	switch e.Envelope.Source {
	case models.SourceKillstream:
		if e.Killmail == nil {
			return fmt.Errorf("killstream event %s missing killmail", e.Envelope.EventID)
		}
	case models.SourceTopology:
		if e.MapEvent == nil {
			return fmt.Errorf("topology event %s missing map event", e.Envelope.EventID)
		}
	}
	return nil
}
