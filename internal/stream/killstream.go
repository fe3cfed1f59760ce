// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
)

// KillstreamClient receives pre-enriched killmail frames over a persistent
// WebSocket connection. The upstream pushes frames continuously and pings
// periodically; there is no acknowledgment protocol.
type KillstreamClient struct {
	rawURL string

	connMu sync.Mutex
	conn   *websocket.Conn

	// onPing is invoked for transport-level pings so the supervisor can
	// refresh the heartbeat between frames on quiet streams.
	onPing func()
}

// subscribeMessage is sent after dial to start the frame flow.
type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// NewKillstreamClient creates a client for the given ws:// or wss:// URL.
func NewKillstreamClient(rawURL string) *KillstreamClient {
	return &KillstreamClient{rawURL: rawURL}
}

// SetPingHook registers the heartbeat callback. Must be called before Dial.
func (c *KillstreamClient) SetPingHook(fn func()) {
	c.onPing = fn
}

// Dial connects and sends the subscribe handshake.
func (c *KillstreamClient) Dial(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil
	}

	wsURL, err := normalizeWebSocketURL(c.rawURL)
	if err != nil {
		return fmt.Errorf("killstream url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("killstream dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("killstream dial: %w", err)
	}

	conn.SetPingHandler(func(appData string) error {
		if c.onPing != nil {
			c.onPing()
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	sub := subscribeMessage{Action: "subscribe", Channel: "killmails"}
	payload, err := json.Marshal(sub)
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return fmt.Errorf("killstream subscribe: %w", err)
	}

	c.conn = conn
	logging.Info().Str("url", wsURL).Msg("killstream connected")
	return nil
}

// ReadFrame returns the next text frame. Blocks until a frame arrives or the
// connection fails; Close unblocks a pending read.
func (c *KillstreamClient) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("killstream: not connected")
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("killstream read: %w", err)
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
		// Binary and control frames are not part of the protocol; skip.
	}
}

// Close tears down the connection, unblocking any pending read.
func (c *KillstreamClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// HasHeartbeat reports true: the killstream transport pings.
func (c *KillstreamClient) HasHeartbeat() bool {
	return true
}

// normalizeWebSocketURL converts http(s) schemes to ws(s).
func normalizeWebSocketURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}
