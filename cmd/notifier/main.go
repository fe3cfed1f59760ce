// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package main is the entry point for the Wanderer Notifier daemon.
//
// The notifier ingests two live upstreams - a pre-enriched killmail stream
// over WebSocket and a map-topology stream over SSE - deduplicates and
// filters events against the map's tracking tables, optionally enriches them
// with ESI reference data, and delivers notifications to per-channel Discord
// webhooks with an at-most-once contract.
//
// # Application Architecture
//
// Components start under a suture supervision tree in three layers:
//
//  1. ingest: one connection supervisor per enabled source, plus the
//     bounded-cache sweeper
//  2. pipeline: the event-processing pipeline and the delivery router
//  3. api: the health/status HTTP server (/healthz, /readyz, /api/status,
//     /metrics)
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (NOTIFIER_ prefix, e.g. NOTIFIER_MAP_TOKEN)
//   - Config file (--config flag, NOTIFIER_CONFIG, or config.yaml)
//   - Built-in defaults
//
// Invariant violations (negative dedup window, zero cache cap, both sources
// disabled) are fatal at startup and can never occur at runtime.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: connections close, in-flight
// pipeline work drains within the configured grace timeout, and the health
// server stops last.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/config"
	"github.com/guarzo/wanderer-notifier-sub002/internal/discord"
	"github.com/guarzo/wanderer-notifier-sub002/internal/esi"
	"github.com/guarzo/wanderer-notifier-sub002/internal/health"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
	"github.com/guarzo/wanderer-notifier-sub002/internal/pipeline"
	"github.com/guarzo/wanderer-notifier-sub002/internal/stream"
	"github.com/guarzo/wanderer-notifier-sub002/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wanderer-notifier: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Bool("killstream", cfg.Killstream.Enabled).
		Bool("map", cfg.Map.Enabled).
		Bool("enrichment", cfg.Enrichment.Enabled).
		Msg("starting wanderer-notifier")

	// Shared bounded cache: dedup records, tracking tables, reference data.
	store, err := cache.NewStore(cache.Config{
		RegionCap:     cfg.Cache.RegionCap,
		SweepInterval: cfg.Cache.SweepInterval,
	})
	if err != nil {
		return err
	}
	history := cache.NewHistory(cfg.Cache.HistoryCap)

	monitor := health.NewMonitor(cfg.Stream.HeartbeatTimeout)

	tracker := pipeline.NewTracker(store)
	tracker.Seed(cfg.Tracking.SystemSeed, cfg.Tracking.CharacterSeed)

	engine := pipeline.NewEngine(store, tracker, pipeline.EngineConfig{
		DedupWindow:     cfg.Pipeline.DedupWindow,
		MaxEventAge:     cfg.Pipeline.MaxEventAge,
		PriorityOnly:    cfg.Pipeline.PriorityOnly,
		PrioritySystems: cfg.Tracking.PrioritySystems,
	})

	var ref esi.ReferenceData
	if cfg.Enrichment.Enabled {
		ref = esi.NewClient(cfg.ESI.BaseURL, cfg.ESI.Timeout, store)
	}
	gate := pipeline.NewGate(pipeline.GateConfig{
		Enabled:     cfg.Enrichment.Enabled,
		Timeout:     cfg.Enrichment.Timeout,
		MaxAttempts: cfg.Enrichment.MaxAttempts,
	}, ref)

	router := pipeline.NewRouter(cfg.Tracking.CorporationFocus)

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, discord.NewWatermillLogger())
	defer bus.Close()

	notifier := discord.NewWebhookNotifier(discord.WebhookConfig{
		Webhooks:      cfg.Discord.Webhooks,
		RatePerSecond: cfg.Discord.RatePerSecond,
		Burst:         cfg.Discord.Burst,
		MaxRetries:    cfg.Discord.MaxRetries,
	})
	delivery, err := discord.NewDeliveryRouter(bus, bus, notifier)
	if err != nil {
		return err
	}

	// Supervision tree: ingest / pipeline / api layers.
	tree, err := supervisor.NewSupervisorTree(logging.SlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Pipeline.DrainTimeout,
	})
	if err != nil {
		return err
	}

	tree.AddIngestService(store)

	var queues []*stream.Queue
	if cfg.Killstream.Enabled {
		queue := stream.NewQueue(string(models.SourceKillstream), cfg.Stream.QueueCapacity)
		queues = append(queues, queue)

		client := stream.NewKillstreamClient(cfg.Killstream.URL)
		client.SetPingHook(func() { monitor.RecordHeartbeat(string(models.SourceKillstream)) })
		tree.AddIngestService(stream.NewSupervisor(stream.SupervisorConfig{
			Source:           models.SourceKillstream,
			HeartbeatTimeout: cfg.Stream.HeartbeatTimeout,
			BaseDelay:        cfg.Stream.BaseDelay,
			MaxDelay:         cfg.Stream.MaxDelay,
			QualityThreshold: cfg.Stream.ReconnectQualityThreshold,
		}, client, stream.DecodeKillmail, queue, monitor))
	}
	if cfg.Map.Enabled {
		queue := stream.NewQueue(string(models.SourceTopology), cfg.Stream.QueueCapacity)
		queues = append(queues, queue)

		client := stream.NewTopologyClient(cfg.Map.URL, cfg.Map.Token, cfg.Map.Slug)
		tree.AddIngestService(stream.NewSupervisor(stream.SupervisorConfig{
			Source:           models.SourceTopology,
			HeartbeatTimeout: cfg.Stream.HeartbeatTimeout,
			BaseDelay:        cfg.Stream.BaseDelay,
			MaxDelay:         cfg.Stream.MaxDelay,
			QualityThreshold: cfg.Stream.ReconnectQualityThreshold,
		}, client, stream.DecodeMapEvent, queue, monitor))
	}

	proc := pipeline.New(queues, engine, gate, tracker, router, bus, history, cfg.Pipeline.DrainTimeout)
	proc.SetStartGate(delivery.Running())
	tree.AddPipelineService(proc)
	tree.AddPipelineService(&routerService{delivery: delivery})

	tree.AddAPIService(health.NewServer(health.ServerConfig{
		Addr:              cfg.Server.Addr,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, monitor, store, history))

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// routerService adapts the watermill delivery router to suture.Service.
type routerService struct {
	delivery *message.Router
}

func (r *routerService) Serve(ctx context.Context) error {
	return r.delivery.Run(ctx)
}

func (r *routerService) String() string { return "delivery-router" }
