// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// Embed colors.
const (
	colorKill     = 0xC0392B // red
	colorTracking = 0x2E86C1 // blue
)

// WebhookConfig holds delivery settings.
type WebhookConfig struct {
	// Webhooks maps channel name to webhook URL. Channels without a URL
	// are skipped with a warning, not failed.
	Webhooks map[string]string

	// RatePerSecond and Burst bound outbound requests across all channels.
	RatePerSecond float64
	Burst         int

	// MaxRetries bounds delivery attempts beyond the first.
	MaxRetries int
}

// WebhookNotifier is the production Notifier over Discord webhooks.
type WebhookNotifier struct {
	cfg     WebhookConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "discord",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &WebhookNotifier{
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: breaker,
	}
}

// Send delivers one dispatch. Missing webhook configuration is a skip, not a
// failure; everything else surfaces an error after bounded retries.
func (n *WebhookNotifier) Send(ctx context.Context, d *models.Dispatch) error {
	url, ok := n.cfg.Webhooks[string(d.Channel)]
	if !ok || url == "" {
		logging.Warn().
			Str("channel", string(d.Channel)).
			Str("event_id", d.EventID).
			Msg("no webhook configured for channel, skipping dispatch")
		return nil
	}

	body, err := json.Marshal(buildMessage(d))
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}

	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err = n.limiter.Wait(ctx); err != nil {
			break
		}

		var retryAfter time.Duration
		retryAfter, err = n.post(ctx, url, body)
		if err == nil {
			metrics.DispatchesSent.WithLabelValues(string(d.Channel), "success").Inc()
			metrics.DeliveryDuration.WithLabelValues(string(d.Channel)).Observe(time.Since(start).Seconds())
			return nil
		}
		if attempt >= n.cfg.MaxRetries {
			break
		}

		delay := retryAfter
		if delay <= 0 {
			delay = time.Duration(attempt+1) * 500 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}

	metrics.DispatchesSent.WithLabelValues(string(d.Channel), "failure").Inc()
	return fmt.Errorf("deliver %s to %s: %w", d.EventID, d.Channel, err)
}

// post performs one breaker-guarded webhook POST. A 429 returns the server's
// retry-after hint alongside the error.
func (n *WebhookNotifier) post(ctx context.Context, url string, body []byte) (time.Duration, error) {
	var retryAfter time.Duration

	_, err := n.breaker.Execute(func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if v := resp.Header.Get("Retry-After"); v != "" {
				if secs, perr := strconv.ParseFloat(v, 64); perr == nil {
					retryAfter = time.Duration(secs * float64(time.Second))
				}
			}
			return struct{}{}, fmt.Errorf("discord rate limited (retry after %s)", retryAfter)
		default:
			return struct{}{}, fmt.Errorf("discord webhook: HTTP %d", resp.StatusCode)
		}
	})
	return retryAfter, err
}

// webhookMessage is the Discord webhook payload.
type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// buildMessage renders a dispatch as a webhook message.
func buildMessage(d *models.Dispatch) webhookMessage {
	msg := webhookMessage{}
	if d.Mention {
		msg.Content = "@here"
	}

	switch {
	case d.Killmail != nil:
		msg.Embeds = []embed{killEmbed(d.Killmail)}
	case d.System != nil:
		msg.Embeds = []embed{{
			Title:       "System tracked",
			Description: fmt.Sprintf("Now tracking **%s**", systemLabel(d.System)),
			Color:       colorTracking,
		}}
	case d.Character != nil:
		msg.Embeds = []embed{{
			Title:       "Character tracked",
			Description: fmt.Sprintf("Now tracking **%s**", characterLabel(d.Character)),
			Color:       colorTracking,
		}}
	}
	return msg
}

func killEmbed(km *models.Killmail) embed {
	system := km.SystemName
	if system == "" {
		system = strconv.FormatInt(int64(km.SystemID), 10)
	}
	victim := km.Victim.CharacterName
	if victim == "" {
		victim = "Unknown pilot"
	}

	e := embed{
		Title:     fmt.Sprintf("Kill in %s", system),
		Color:     colorKill,
		Timestamp: km.OccurredAt.Format(time.RFC3339),
		Fields: []embedField{
			{Name: "Victim", Value: victim, Inline: true},
			{Name: "Attackers", Value: strconv.Itoa(len(km.Attackers)), Inline: true},
		},
	}
	if km.Victim.ShipName != "" {
		e.Fields = append(e.Fields, embedField{Name: "Ship", Value: km.Victim.ShipName, Inline: true})
	}
	if km.ValueISK > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Value", Value: formatISK(km.ValueISK), Inline: true})
	}
	return e
}

func systemLabel(s *models.SystemInfo) string {
	if s.Name != "" {
		return s.Name
	}
	return strconv.FormatInt(int64(s.SystemID), 10)
}

func characterLabel(c *models.CharacterInfo) string {
	if c.Name != "" {
		return c.Name
	}
	return strconv.FormatInt(c.CharacterID, 10)
}

// formatISK renders an ISK value in the compact style kill boards use.
func formatISK(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fb ISK", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fm ISK", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk ISK", v/1e3)
	default:
		return fmt.Sprintf("%.0f ISK", v)
	}
}
