// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package discord

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
	"github.com/guarzo/wanderer-notifier-sub002/internal/pipeline"
)

// TopicPoison receives dispatches that failed delivery permanently. They are
// counted and logged; the dedup record upstream stays committed either way.
const TopicPoison = "notifications.poison"

// NewDeliveryRouter builds the watermill router that consumes routed
// dispatches and hands them to the notifier. Failures are retried with
// backoff; messages that exhaust retries land on the poison topic.
func NewDeliveryRouter(sub message.Subscriber, pub message.Publisher, notifier Notifier) (*message.Router, error) {
	logger := NewWatermillLogger()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("delivery router: %w", err)
	}

	poison, err := middleware.PoisonQueue(pub, TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("poison queue: %w", err)
	}

	router.AddMiddleware(
		poison,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			Logger:          logger,
		}.Middleware,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler(
		"discord-delivery",
		pipeline.TopicDispatch,
		sub,
		func(msg *message.Message) error {
			d, err := models.UnmarshalDispatch(msg.Payload)
			if err != nil {
				return err
			}
			return notifier.Send(msg.Context(), d)
		},
	)

	router.AddNoPublisherHandler(
		"poison-audit",
		TopicPoison,
		sub,
		func(msg *message.Message) error {
			metrics.DispatchesPoisoned.Inc()
			logging.Error().
				Str("message_id", msg.UUID).
				Msg("dispatch permanently failed, captured on poison topic")
			return nil
		},
	)

	return router, nil
}

// watermillLogger adapts the global zerolog logger to watermill's interface.
type watermillLogger struct {
	log zerolog.Logger
}

// NewWatermillLogger returns a watermill logger backed by the global zerolog
// logger. Shared by the delivery router and the in-process bus.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermillLogger{log: logging.With().Str("component", "bus").Logger()}
}

func (w watermillLogger) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.event(w.log.Error().Err(err), msg, fields)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.event(w.log.Info(), msg, fields)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.event(w.log.Debug(), msg, fields)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.event(w.log.Trace(), msg, fields)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return watermillLogger{log: ctx.Logger()}
}
