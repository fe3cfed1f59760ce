// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// killstreamTestServer upgrades connections, verifies the subscribe
// handshake, and then runs the given session function.
func killstreamTestServer(t *testing.T, session func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		var sub subscribeMessage
		if err := json.Unmarshal(payload, &sub); err != nil {
			t.Errorf("decode subscribe: %v", err)
			return
		}
		if sub.Action != "subscribe" || sub.Channel != "killmails" {
			t.Errorf("unexpected subscribe message %+v", sub)
			return
		}

		session(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKillstreamClientReadsFrames(t *testing.T) {
	srv := killstreamTestServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":2}`))
		time.Sleep(200 * time.Millisecond)
	})

	c := NewKillstreamClient(srv.URL)
	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	frame, err := c.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if string(frame) != `{"id":1}` {
		t.Errorf("first frame = %s", frame)
	}

	// Binary frames are skipped.
	frame, err = c.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if string(frame) != `{"id":2}` {
		t.Errorf("second frame = %s", frame)
	}
}

func TestKillstreamClientPingHook(t *testing.T) {
	srv := killstreamTestServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second)); err != nil {
			t.Errorf("write ping: %v", err)
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":3}`))
		time.Sleep(200 * time.Millisecond)
	})

	pinged := make(chan struct{}, 1)
	c := NewKillstreamClient(srv.URL)
	c.SetPingHook(func() {
		select {
		case pinged <- struct{}{}:
		default:
		}
	})
	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	// Ping handlers run inside ReadMessage, so pull the following frame.
	if _, err := c.ReadFrame(context.Background()); err != nil {
		t.Fatalf("read: %v", err)
	}

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Error("ping hook was not invoked")
	}
}

func TestKillstreamClientCloseUnblocksRead(t *testing.T) {
	srv := killstreamTestServer(t, func(conn *websocket.Conn) {
		time.Sleep(500 * time.Millisecond)
	})

	c := NewKillstreamClient(srv.URL)
	if err := c.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}

	readDone := make(chan error, 1)
	go func() {
		_, err := c.ReadFrame(context.Background())
		readDone <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-readDone:
		if err == nil {
			t.Error("expected error from read after close")
		}
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestKillstreamClientDialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewKillstreamClient(srv.URL)
	if err := c.Dial(context.Background()); err == nil {
		t.Error("expected dial error from non-upgrading server")
	}
}

func TestNormalizeWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://example.com/stream", want: "ws://example.com/stream"},
		{in: "https://example.com/stream", want: "wss://example.com/stream"},
		{in: "ws://example.com/stream", want: "ws://example.com/stream"},
		{in: "wss://example.com/stream", want: "wss://example.com/stream"},
		{in: "ftp://example.com/stream", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeWebSocketURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeWebSocketURL(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeWebSocketURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeWebSocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
