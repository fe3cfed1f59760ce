// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
)

// TopologyClient receives map topology events over Server-Sent Events.
// SSE carries no ping frames, so the client reports HasHeartbeat false and
// the health monitor excludes heartbeat recency from its score.
type TopologyClient struct {
	url   string
	token string
	slug  string

	// httpClient has no overall timeout: the response body is a stream.
	httpClient *http.Client

	mu     sync.Mutex
	body   io.ReadCloser
	reader *bufio.Reader
}

// NewTopologyClient creates a client for the map's SSE endpoint.
func NewTopologyClient(url, token, slug string) *TopologyClient {
	return &TopologyClient{
		url:        url,
		token:      token,
		slug:       slug,
		httpClient: &http.Client{},
	}
}

// Dial opens the event stream.
func (c *TopologyClient) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.body != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("topology request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.slug != "" {
		q := req.URL.Query()
		q.Set("slug", c.slug)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body is the stream, closed in Close
	if err != nil {
		return fmt.Errorf("topology dial: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("topology dial: HTTP %d", resp.StatusCode)
	}

	c.body = resp.Body
	c.reader = bufio.NewReader(resp.Body)
	logging.Info().Str("url", c.url).Msg("topology stream connected")
	return nil
}

// ReadFrame returns the data of the next SSE event. Comment lines and
// non-data fields are skipped; multi-line data fields are joined with
// newlines per the SSE format.
func (c *TopologyClient) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return nil, fmt.Errorf("topology: not connected")
	}

	var data [][]byte
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("topology read: %w", err)
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			// Event boundary.
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if line[0] == ':' {
			// Comment / keep-alive line.
			continue
		}
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = append(data, bytes.TrimPrefix(rest, []byte(" ")))
		}
		// Other SSE fields (event:, id:, retry:) are not used upstream.
	}
}

// Close tears down the stream, unblocking any pending read.
func (c *TopologyClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.body == nil {
		return nil
	}
	err := c.body.Close()
	c.body = nil
	c.reader = nil
	return err
}

// HasHeartbeat reports false: pure SSE delivery without ping frames.
func (c *TopologyClient) HasHeartbeat() bool {
	return false
}
