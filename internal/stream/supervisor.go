// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/health"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// errLowQuality forces a proactive reconnect when the quality score stays
// below the configured threshold while degraded.
var errLowQuality = errors.New("connection quality below reconnect threshold")

// SupervisorConfig holds per-source supervisor settings.
type SupervisorConfig struct {
	Source models.Source

	// HeartbeatTimeout marks a connection degraded when no frame or ping
	// arrives for this long. The same duration is applied as a grace period
	// from connection establishment, so a freshly connected quiet source is
	// never immediately flagged.
	HeartbeatTimeout time.Duration

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// QualityThreshold triggers a proactive reconnect when the score stays
	// below it while degraded. 0 disables proactive reconnects.
	QualityThreshold float64
}

// Supervisor owns one upstream streaming connection. It drives the state
// machine Idle -> Connecting -> Connected -> Degraded -> Reconnecting ->
// Connecting..., with ShuttingDown terminal on context cancellation.
//
// Malformed frames are dropped and logged without tearing down the
// connection; transport errors trigger reconnect with exponential backoff.
type Supervisor struct {
	cfg     SupervisorConfig
	client  SourceClient
	decode  Decoder
	queue   *Queue
	monitor *health.Monitor
	backoff *Backoff

	// now and checkInterval are injectable for tests.
	now           func() time.Time
	checkInterval time.Duration

	mu            sync.Mutex
	state         health.State
	lastHeartbeat time.Time
}

// NewSupervisor creates a supervisor and registers its health record.
func NewSupervisor(cfg SupervisorConfig, client SourceClient, decode Decoder, queue *Queue, monitor *health.Monitor) *Supervisor {
	monitor.Register(string(cfg.Source), client.HasHeartbeat())

	interval := cfg.HeartbeatTimeout / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	return &Supervisor{
		cfg:           cfg,
		client:        client,
		decode:        decode,
		queue:         queue,
		monitor:       monitor,
		backoff:       NewBackoff(cfg.BaseDelay, cfg.MaxDelay),
		now:           time.Now,
		checkInterval: interval,
		state:         health.StateIdle,
	}
}

// String names the service in supervision logs.
func (s *Supervisor) String() string {
	return string(s.cfg.Source) + "-supervisor"
}

// State returns the current supervisor state.
func (s *Supervisor) State() health.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state health.State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		logging.Info().
			Str("source", string(s.cfg.Source)).
			Str("from", string(prev)).
			Str("to", string(state)).
			Msg("connection state transition")
	}
	s.monitor.SetState(string(s.cfg.Source), state)
}

func (s *Supervisor) touchHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = s.now()
	s.mu.Unlock()
	s.monitor.RecordHeartbeat(string(s.cfg.Source))
}

// Serve drives the connection until the context is canceled. Implements
// suture.Service.
func (s *Supervisor) Serve(ctx context.Context) error {
	source := string(s.cfg.Source)
	attempt := 0

	for {
		if ctx.Err() != nil {
			s.setState(health.StateShuttingDown)
			return ctx.Err()
		}

		s.setState(health.StateConnecting)
		if err := s.client.Dial(ctx); err != nil {
			if ctx.Err() != nil {
				s.setState(health.StateShuttingDown)
				return ctx.Err()
			}
			s.monitor.RecordFailure(source, err)
			logging.Warn().Err(err).Str("source", source).Int("attempt", attempt).Msg("dial failed")

			if !s.waitBackoff(ctx, attempt) {
				s.setState(health.StateShuttingDown)
				return ctx.Err()
			}
			attempt++
			continue
		}

		s.setState(health.StateConnected)
		s.touchHeartbeat()
		connectedAt := s.now()
		attempt = 0

		err := s.serveConnection(ctx, connectedAt)
		_ = s.client.Close()

		if ctx.Err() != nil {
			s.setState(health.StateShuttingDown)
			return ctx.Err()
		}

		s.monitor.RecordFailure(source, err)
		logging.Warn().Err(err).Str("source", source).Msg("connection lost, reconnecting")

		if !s.waitBackoff(ctx, attempt) {
			s.setState(health.StateShuttingDown)
			return ctx.Err()
		}
		attempt++
	}
}

// waitBackoff transitions to Reconnecting and sleeps the backoff delay.
// Returns false when the context was canceled during the wait.
func (s *Supervisor) waitBackoff(ctx context.Context, attempt int) bool {
	s.setState(health.StateReconnecting)
	metrics.ConnectionReconnects.WithLabelValues(string(s.cfg.Source)).Inc()

	delay := s.backoff.Delay(attempt)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// serveConnection pumps frames and watches heartbeat health until the
// transport fails, quality forces a reconnect, or the context ends.
func (s *Supervisor) serveConnection(ctx context.Context, connectedAt time.Time) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			frame, err := s.client.ReadFrame(ctx)
			if err != nil {
				select {
				case readErr <- err:
				case <-done:
				}
				return
			}
			select {
			case frames <- frame:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case frame := <-frames:
			s.handleFrame(frame)
		case <-ticker.C:
			if err := s.checkHealth(connectedAt); err != nil {
				return err
			}
		}
	}
}

// handleFrame decodes a frame and hands it to the pipeline queue. Parse
// failures drop the frame only; a single malformed message is never
// connection-fatal.
func (s *Supervisor) handleFrame(frame []byte) {
	source := string(s.cfg.Source)
	metrics.FramesReceived.WithLabelValues(source).Inc()
	s.touchHeartbeat()

	// Frame arrival recovers a degraded connection.
	if s.State() == health.StateDegraded {
		s.setState(health.StateConnected)
	}

	evt, err := s.decode(frame)
	if err != nil {
		metrics.FrameParseErrors.WithLabelValues(source).Inc()
		logging.Warn().Err(err).Str("source", source).Msg("dropping malformed frame")
		return
	}
	if err := evt.Validate(); err != nil {
		metrics.FrameParseErrors.WithLabelValues(source).Inc()
		logging.Warn().Err(err).Str("source", source).Msg("dropping invalid event")
		return
	}

	s.queue.Push(evt)
}

// checkHealth applies the heartbeat-timeout rule and the proactive-reconnect
// policy. Sources without a heartbeat concept are exempt from degradation.
func (s *Supervisor) checkHealth(connectedAt time.Time) error {
	if !s.client.HasHeartbeat() {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	lastHeartbeat := s.lastHeartbeat
	state := s.state
	s.mu.Unlock()

	// The grace period from connection establishment prevents a false
	// "no heartbeat" alarm immediately after connecting.
	inGrace := now.Sub(connectedAt) <= s.cfg.HeartbeatTimeout
	silent := now.Sub(lastHeartbeat) > s.cfg.HeartbeatTimeout

	if silent && !inGrace && state == health.StateConnected {
		logging.Warn().
			Str("source", string(s.cfg.Source)).
			Dur("silence", now.Sub(lastHeartbeat)).
			Msg("no heartbeat within timeout, marking degraded")
		s.setState(health.StateDegraded)
		state = health.StateDegraded
	}

	if state == health.StateDegraded && s.cfg.QualityThreshold > 0 {
		if score := s.monitor.Score(string(s.cfg.Source)); score < s.cfg.QualityThreshold {
			logging.Warn().
				Str("source", string(s.cfg.Source)).
				Float64("score", score).
				Msg("sustained low quality, forcing reconnect")
			return errLowQuality
		}
	}
	return nil
}
