// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package discord delivers routed dispatches to Discord webhooks. One webhook
// URL per notification channel; delivery is rate limited, breaker guarded,
// and retried a bounded number of times. A failed delivery never rolls back
// the dedup record upstream.
package discord

import (
	"context"
	"sync"

	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Notifier sends one dispatch to its destination channel.
type Notifier interface {
	Send(ctx context.Context, d *models.Dispatch) error
}

// CapturingNotifier records dispatches for tests.
type CapturingNotifier struct {
	mu   sync.Mutex
	sent []models.Dispatch

	// Err, when set, is returned from every Send.
	Err error
}

// Send records the dispatch.
func (c *CapturingNotifier) Send(_ context.Context, d *models.Dispatch) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, *d)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (c *CapturingNotifier) Sent() []models.Dispatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Dispatch, len(c.sent))
	copy(out, c.sent)
	return out
}
