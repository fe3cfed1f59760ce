// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package config loads and validates the notifier's immutable configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// YAML file, then NOTIFIER_-prefixed environment variables. The resulting
// struct is passed explicitly to every component at construction; nothing
// reads configuration ambiently after startup, and changes require a restart.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full immutable process configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Killstream KillstreamConfig `koanf:"killstream"`
	Map        MapConfig        `koanf:"map"`
	Stream     StreamConfig     `koanf:"stream"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Cache      CacheConfig      `koanf:"cache"`
	Enrichment EnrichmentConfig `koanf:"enrichment"`
	ESI        ESIConfig        `koanf:"esi"`
	Discord    DiscordConfig    `koanf:"discord"`
	Tracking   TrackingConfig   `koanf:"tracking"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the health/status HTTP surface.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// RequestsPerMinute rate-limits the status endpoints per client IP.
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=1"`
}

// KillstreamConfig describes the killmail stream source.
type KillstreamConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true,omitempty,url"`
}

// MapConfig describes the map topology stream source.
type MapConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token   string `koanf:"token"`
	Slug    string `koanf:"slug"`
}

// StreamConfig controls the connection supervisors shared by both sources.
type StreamConfig struct {
	// HeartbeatTimeout is how long a connected source may go without a frame
	// or heartbeat before being marked degraded. The same duration is applied
	// as a grace period after connection establishment.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`

	// BaseDelay and MaxDelay bound the exponential reconnect backoff.
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`

	// QueueCapacity bounds the per-source ingest queue. When full, the oldest
	// pending event is dropped rather than blocking the connection worker.
	QueueCapacity int `koanf:"queue_capacity"`

	// ReconnectQualityThreshold triggers a proactive reconnect when the
	// quality score stays below it.
	ReconnectQualityThreshold float64 `koanf:"reconnect_quality_threshold" validate:"min=0,max=100"`
}

// PipelineConfig controls dedup and determination.
type PipelineConfig struct {
	// DedupWindow is how long a repeated event_id is suppressed.
	DedupWindow time.Duration `koanf:"dedup_window"`

	// MaxEventAge discards events older than this, measured from occurred_at.
	// Protects against notification floods when a reconnect replays backlog.
	MaxEventAge time.Duration `koanf:"max_event_age"`

	// PriorityOnly restricts worthiness to the priority system subset.
	PriorityOnly bool `koanf:"priority_only"`

	// DrainTimeout bounds the graceful drain of in-flight events at shutdown.
	DrainTimeout time.Duration `koanf:"drain_timeout"`
}

// CacheConfig controls the bounded cache.
type CacheConfig struct {
	RegionCap     int           `koanf:"region_cap"`
	HistoryCap    int           `koanf:"history_cap"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// EnrichmentConfig controls the best-effort enrichment gate.
type EnrichmentConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=3"`
}

// ESIConfig describes the reference-data collaborator.
type ESIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"`
}

// DiscordConfig describes the delivery collaborator.
type DiscordConfig struct {
	// Webhooks maps channel names to webhook URLs. Channels without a
	// webhook are logged and skipped at delivery time.
	Webhooks map[string]string `koanf:"webhooks"`

	// RatePerSecond and Burst bound outbound webhook calls.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"min=0"`
	Burst         int     `koanf:"burst" validate:"min=1"`

	// MaxRetries is the delivery-side retry budget per dispatch.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=10"`
}

// TrackingConfig seeds the tracking tables and routing sets.
type TrackingConfig struct {
	// SystemSeed and CharacterSeed pre-populate the tracking tables before
	// the topology stream takes over.
	SystemSeed    []int32 `koanf:"system_seed"`
	CharacterSeed []int64 `koanf:"character_seed"`

	// PrioritySystems receive an attention flag on dispatch; with
	// pipeline.priority_only set they are the only systems considered.
	PrioritySystems []int32 `koanf:"priority_systems"`

	// CorporationFocus overrides system routing to the character-kill
	// channel when a participant belongs to one of these corporations.
	CorporationFocus []int64 `koanf:"corporation_focus"`
}

// Default returns the built-in defaults applied before file and env layers.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestsPerMinute: 120,
		},
		Killstream: KillstreamConfig{
			Enabled: true,
			URL:     "wss://kills.wanderer.example/socket",
		},
		Map: MapConfig{
			Enabled: true,
			URL:     "https://map.wanderer.example/api/events",
		},
		Stream: StreamConfig{
			HeartbeatTimeout:          60 * time.Second,
			BaseDelay:                 time.Second,
			MaxDelay:                  30 * time.Second,
			QueueCapacity:             2048,
			ReconnectQualityThreshold: 20,
		},
		Pipeline: PipelineConfig{
			DedupWindow:  30 * time.Minute,
			MaxEventAge:  time.Hour,
			PriorityOnly: false,
			DrainTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			RegionCap:     500,
			HistoryCap:    500,
			SweepInterval: time.Minute,
		},
		Enrichment: EnrichmentConfig{
			Enabled:     true,
			Timeout:     15 * time.Second,
			MaxAttempts: 2,
		},
		ESI: ESIConfig{
			BaseURL: "https://esi.evetech.net",
			Timeout: 10 * time.Second,
		},
		Discord: DiscordConfig{
			Webhooks:      map[string]string{},
			RatePerSecond: 5,
			Burst:         5,
			MaxRetries:    3,
		},
	}
}

// Validate checks struct tags plus the invariants that must be fatal at
// startup: negative TTLs, zero caps, inverted backoff bounds. Runtime code
// assumes a validated config and never re-checks these.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Stream.HeartbeatTimeout > 0, "stream.heartbeat_timeout must be positive"},
		{c.Stream.BaseDelay > 0, "stream.base_delay must be positive"},
		{c.Stream.MaxDelay >= c.Stream.BaseDelay, "stream.max_delay must be >= stream.base_delay"},
		{c.Stream.QueueCapacity > 0, "stream.queue_capacity must be positive"},
		{c.Pipeline.DedupWindow > 0, "pipeline.dedup_window must be positive"},
		{c.Pipeline.MaxEventAge > 0, "pipeline.max_event_age must be positive"},
		{c.Pipeline.DrainTimeout > 0, "pipeline.drain_timeout must be positive"},
		{c.Cache.RegionCap > 0, "cache.region_cap must be positive"},
		{c.Cache.HistoryCap > 0, "cache.history_cap must be positive"},
		{c.Cache.SweepInterval > 0, "cache.sweep_interval must be positive"},
		{c.Enrichment.Timeout > 0, "enrichment.timeout must be positive"},
		{c.ESI.Timeout > 0, "esi.timeout must be positive"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("config: %s", check.msg)
		}
	}

	if !c.Killstream.Enabled && !c.Map.Enabled {
		return fmt.Errorf("config: at least one of killstream and map must be enabled")
	}

	return nil
}
