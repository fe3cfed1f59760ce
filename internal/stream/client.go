// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import "context"

// SourceClient is the narrow transport abstraction a Supervisor drives.
// One production implementation exists per source plus test doubles.
type SourceClient interface {
	// Dial establishes the connection, including any subscribe handshake.
	Dial(ctx context.Context) error

	// ReadFrame blocks until the next frame, a transport error, or context
	// cancellation. Transport errors cause the supervisor to reconnect.
	ReadFrame(ctx context.Context) ([]byte, error)

	// Close tears down the connection. Safe to call when not connected.
	Close() error

	// HasHeartbeat reports whether the transport carries ping frames.
	// SSE sources return false and are exempt from heartbeat-recency
	// degradation and scoring.
	HasHeartbeat() bool
}
