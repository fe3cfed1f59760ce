// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: min(maxDelay, baseDelay*2^attempt) plus
// up to 10% jitter to avoid thundering-herd reconnects.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// jitter is injectable for tests; defaults to rand.Float64.
	jitter func() float64
}

// NewBackoff creates a backoff curve with the given bounds.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max, jitter: rand.Float64}
}

// Delay returns the delay for the given zero-based attempt number.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	if d > b.Max {
		d = b.Max
	}

	jitterFn := b.jitter
	if jitterFn == nil {
		jitterFn = rand.Float64
	}
	return d + time.Duration(jitterFn()*0.1*float64(d))
}
