// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"sync"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
)

// Queue is the bounded hand-off between a connection worker and the
// pipeline. When full, the oldest pending event is dropped with a logged
// warning rather than blocking the connection worker: bounded memory takes
// priority over zero data loss under the at-most-once contract.
type Queue struct {
	source string
	ch     chan Event

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue with the given capacity.
func NewQueue(source string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 2048
	}
	return &Queue{
		source: source,
		ch:     make(chan Event, capacity),
	}
}

// Push enqueues an event, evicting the oldest pending event if full.
// Safe for a single producer; never blocks indefinitely.
func (q *Queue) Push(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	for {
		select {
		case q.ch <- evt:
			metrics.QueueDepth.WithLabelValues(q.source).Set(float64(len(q.ch)))
			return
		default:
		}

		select {
		case dropped := <-q.ch:
			metrics.QueueDropped.WithLabelValues(q.source).Inc()
			logging.Warn().
				Str("source", q.source).
				Str("event_id", dropped.Envelope.EventID).
				Msg("ingest queue full, dropping oldest pending event")
		default:
		}
	}
}

// C returns the receive side for the pipeline.
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Close closes the queue. Push becomes a no-op; pending events remain
// readable so the pipeline can drain them.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
