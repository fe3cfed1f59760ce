// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogLogger bridges the global zerolog logger into log/slog for libraries
// that only accept *slog.Logger (the supervision tree's event hook). Records
// pass through the same sink and format as everything else.
func SlogLogger() *slog.Logger {
	return slog.New(slogBridge{})
}

// slogBridge forwards slog records to the global zerolog logger.
type slogBridge struct {
	attrs []slog.Attr
}

func (b slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return levelFromSlog(level) >= Logger().GetLevel()
}

func (b slogBridge) Handle(_ context.Context, record slog.Record) error {
	l := Logger()
	evt := l.WithLevel(levelFromSlog(record.Level))
	for _, attr := range b.attrs {
		evt = evt.Interface(attr.Key, attr.Value.Any())
	}
	record.Attrs(func(attr slog.Attr) bool {
		evt = evt.Interface(attr.Key, attr.Value.Any())
		return true
	})
	evt.Msg(record.Message)
	return nil
}

func (b slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return slogBridge{attrs: merged}
}

func (b slogBridge) WithGroup(name string) slog.Handler {
	// Groups are flattened; the supervision hook does not nest.
	return b
}

func levelFromSlog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
