// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package pipeline turns raw stream events into routed notification
// dispatches: dedup and staleness filtering, tracking-match determination,
// best-effort enrichment, and channel selection. Routed dispatches leave on
// the in-process notification bus; delivery is someone else's problem.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
	"github.com/guarzo/wanderer-notifier-sub002/internal/stream"
)

// TopicDispatch is the bus topic carrying routed dispatches to delivery.
const TopicDispatch = "notifications.dispatch"

// Pipeline consumes the bounded ingest queues and processes one worker per
// in-flight event. Shutdown stops consumption and drains in-flight workers
// within a bounded grace timeout.
type Pipeline struct {
	queues    []*stream.Queue
	engine    *Engine
	gate      *Gate
	tracker   *Tracker
	router    *Router
	publisher message.Publisher
	history   *cache.History

	// ready, when set, holds consumption until it closes so dispatches are
	// never published before the delivery subscriber is running.
	ready <-chan struct{}

	drainTimeout time.Duration
	wg           sync.WaitGroup
}

// New creates a pipeline over the given ingest queues. history may be nil.
func New(queues []*stream.Queue, engine *Engine, gate *Gate, tracker *Tracker, router *Router, publisher message.Publisher, history *cache.History, drainTimeout time.Duration) *Pipeline {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Pipeline{
		queues:       queues,
		engine:       engine,
		gate:         gate,
		tracker:      tracker,
		router:       router,
		publisher:    publisher,
		history:      history,
		drainTimeout: drainTimeout,
	}
}

// SetStartGate delays queue consumption until ch closes. Wired to the
// delivery router's Running channel so the startup window cannot drop
// dispatches on the floor.
func (p *Pipeline) SetStartGate(ch <-chan struct{}) {
	p.ready = ch
}

// String names the service in supervision logs.
func (p *Pipeline) String() string { return "pipeline" }

// Serve consumes until the context is canceled, then drains. Implements
// suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	if p.ready != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ready:
		}
	}

	var consumers sync.WaitGroup
	for _, q := range p.queues {
		consumers.Add(1)
		go func(q *stream.Queue) {
			defer consumers.Done()
			p.consume(ctx, q)
		}(q)
	}
	consumers.Wait()

	p.drain()
	return ctx.Err()
}

func (p *Pipeline) consume(ctx context.Context, q *stream.Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-q.C():
			if !ok {
				return
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.process(ctx, evt)
			}()
		}
	}
}

// drain waits for in-flight workers up to the grace timeout.
func (p *Pipeline) drain() {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("pipeline drained")
	case <-time.After(p.drainTimeout):
		logging.Warn().
			Dur("timeout", p.drainTimeout).
			Msg("pipeline drain timed out, abandoning in-flight events")
	}
}

func (p *Pipeline) process(ctx context.Context, evt stream.Event) {
	switch evt.Envelope.Source {
	case models.SourceKillstream:
		p.processKillmail(ctx, evt.Killmail)
	case models.SourceTopology:
		p.processTopology(evt.MapEvent)
	}
}

func (p *Pipeline) processKillmail(ctx context.Context, km *models.Killmail) {
	det := p.engine.Determine(km)
	if !det.Worthy {
		return
	}

	km = p.gate.Enrich(ctx, km)
	for _, d := range p.router.Route(km, det) {
		p.publish(d)
	}
}

// processTopology always applies the mutation; the announcement (additions
// only) is deduplicated so replays after a reconnect stay silent.
func (p *Pipeline) processTopology(evt *models.MapEvent) {
	p.tracker.ApplyMapEvent(evt)

	if evt.Type == models.MapEventAdded && p.engine.Deduplicate(evt.EventID()) {
		return
	}
	for _, d := range p.router.RouteMapEvent(evt) {
		p.publish(d)
	}
}

func (p *Pipeline) publish(d models.Dispatch) {
	payload, err := models.MarshalDispatch(&d)
	if err != nil {
		logging.Error().Err(err).Str("event_id", d.EventID).Msg("dispatch marshal failed")
		return
	}

	msg := message.NewMessage(d.DispatchID, payload)
	if err := p.publisher.Publish(TopicDispatch, msg); err != nil {
		logging.Error().
			Err(err).
			Str("event_id", d.EventID).
			Str("channel", string(d.Channel)).
			Msg("dispatch publish failed")
		return
	}
	if p.history != nil {
		p.history.Record(cache.Sample{Operation: "dispatch", Region: string(d.Channel)})
	}
	logging.Debug().
		Str("event_id", d.EventID).
		Str("channel", string(d.Channel)).
		Bool("mention", d.Mention).
		Msg("dispatch routed")
}
