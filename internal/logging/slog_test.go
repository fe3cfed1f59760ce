// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogBridgeForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	defer SetLogger(orig)
	SetLogger(NewTestLogger(&buf))

	logger := SlogLogger()
	logger.Info("service started", slog.String("service", "pipeline"))

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("expected record message in output, got %q", out)
	}
	if !strings.Contains(out, "pipeline") {
		t.Errorf("expected record attr in output, got %q", out)
	}
}

func TestSlogBridgeWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	defer SetLogger(orig)
	SetLogger(NewTestLogger(&buf))

	logger := SlogLogger().With(slog.String("layer", "ingest"))
	logger.Warn("service restarting")

	out := buf.String()
	if !strings.Contains(out, "ingest") {
		t.Errorf("expected pre-bound attr in output, got %q", out)
	}
	if !strings.Contains(out, "service restarting") {
		t.Errorf("expected message in output, got %q", out)
	}
}
