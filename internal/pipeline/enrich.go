// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/esi"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
	"github.com/guarzo/wanderer-notifier-sub002/internal/models"
)

// GateConfig holds enrichment policy.
type GateConfig struct {
	Enabled     bool
	Timeout     time.Duration
	MaxAttempts int
}

// Gate augments killmails with reference data before routing. Enrichment is
// strictly best-effort: every failure mode returns the killmail unchanged and
// the pipeline proceeds. Fields are populated in place, never replaced.
type Gate struct {
	cfg GateConfig
	ref esi.ReferenceData
}

// NewGate creates an enrichment gate.
func NewGate(cfg GateConfig, ref esi.ReferenceData) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	return &Gate{cfg: cfg, ref: ref}
}

// Enrich populates names and pricing on the killmail. The whole operation
// shares one timeout across attempts; on any terminal failure the input is
// returned as-is with a warning logged.
func (g *Gate) Enrich(ctx context.Context, km *models.Killmail) *models.Killmail {
	if !g.cfg.Enabled || g.ref == nil {
		metrics.EnrichmentOutcomes.WithLabelValues("skipped").Inc()
		return km
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err = g.enrichOnce(ctx, km); err == nil {
			metrics.EnrichmentOutcomes.WithLabelValues("enriched").Inc()
			metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
			return km
		}
		if ctx.Err() != nil {
			break
		}
	}

	outcome := "failed"
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		outcome = "timeout"
	}
	metrics.EnrichmentOutcomes.WithLabelValues(outcome).Inc()
	metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	logging.Warn().
		Err(err).
		Int64("killmail_id", km.ID).
		Msg("enrichment failed, proceeding unenriched")
	return km
}

// enrichOnce fills in whatever is missing. Partial progress is kept: fields
// already populated by an earlier attempt are not refetched.
func (g *Gate) enrichOnce(ctx context.Context, km *models.Killmail) error {
	if km.SystemName == "" {
		name, err := g.ref.SystemName(ctx, km.SystemID)
		if err != nil {
			return err
		}
		km.SystemName = name
	}

	if err := g.enrichEntity(ctx, &km.Victim); err != nil {
		return err
	}
	for i := range km.Attackers {
		if err := g.enrichEntity(ctx, &km.Attackers[i]); err != nil {
			return err
		}
	}

	if km.ValueISK == 0 && km.Victim.ShipTypeID != 0 {
		price, err := g.ref.ShipPrice(ctx, km.Victim.ShipTypeID)
		if err != nil {
			return err
		}
		km.ValueISK = price
	}
	return nil
}

func (g *Gate) enrichEntity(ctx context.Context, e *models.Entity) error {
	if e.CharacterID != 0 && e.CharacterName == "" {
		name, err := g.ref.CharacterName(ctx, e.CharacterID)
		if err != nil {
			return err
		}
		e.CharacterName = name
	}
	if e.CorporationID != 0 && e.CorporationName == "" {
		name, err := g.ref.CorporationName(ctx, e.CorporationID)
		if err != nil {
			return err
		}
		e.CorporationName = name
	}
	if e.ShipTypeID != 0 && e.ShipName == "" {
		name, err := g.ref.ShipTypeName(ctx, e.ShipTypeID)
		if err != nil {
			return err
		}
		e.ShipName = name
	}
	return nil
}
