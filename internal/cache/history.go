// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package cache

import (
	"sync"
	"time"
)

// Sample is one recorded cache or pipeline operation, used for analytics on
// the status surface.
type Sample struct {
	Operation string        `json:"operation"`
	Region    string        `json:"region,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	At        time.Time     `json:"at"`
}

// History is a fixed-capacity ring buffer of operation samples. Once full,
// new samples overwrite the oldest; the buffer is the memory bound for
// analytics under load.
type History struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool
}

// NewHistory creates a history buffer. A cap <= 0 falls back to 500.
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = 500
	}
	return &History{samples: make([]Sample, cap)}
}

// Record appends a sample, overwriting the oldest once the buffer is full.
func (h *History) Record(s Sample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = s
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
}

// Len returns the number of resident samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.full {
		return len(h.samples)
	}
	return h.next
}

// Cap returns the fixed capacity.
func (h *History) Cap() int {
	return len(h.samples)
}

// Snapshot returns resident samples in order from oldest to newest.
func (h *History) Snapshot() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]Sample, h.next)
		copy(out, h.samples[:h.next])
		return out
	}

	out := make([]Sample, 0, len(h.samples))
	out = append(out, h.samples[h.next:]...)
	out = append(out, h.samples[:h.next]...)
	return out
}
