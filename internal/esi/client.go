// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package esi looks up reference data (character, corporation, and system
// names, ship prices) from the EVE Swagger Interface. The upstream is treated
// as unreliable: every call carries a timeout, results are cached, and a
// circuit breaker sheds load when ESI misbehaves. Only the enrichment gate
// consumes this package, and it tolerates every failure.
package esi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/guarzo/wanderer-notifier-sub002/internal/cache"
	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
)

// DefaultBaseURL is the public ESI endpoint.
const DefaultBaseURL = "https://esi.evetech.net/latest"

// Cache TTLs. Names effectively never change; prices refresh daily upstream.
const (
	nameTTL  = 6 * time.Hour
	priceTTL = time.Hour
)

// ReferenceData is the lookup surface the enrichment gate consumes.
type ReferenceData interface {
	CharacterName(ctx context.Context, id int64) (string, error)
	CorporationName(ctx context.Context, id int64) (string, error)
	SystemName(ctx context.Context, id int32) (string, error)
	ShipTypeName(ctx context.Context, id int32) (string, error)
	ShipPrice(ctx context.Context, typeID int32) (float64, error)
}

// Client is the production ReferenceData implementation.
type Client struct {
	baseURL string
	http    *http.Client
	store   *cache.Store
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a client. An empty baseURL selects the public endpoint;
// timeout bounds each HTTP call.
func NewClient(baseURL string, timeout time.Duration, store *cache.Store) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "esi",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerOrdinal(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		store:   store,
		breaker: breaker,
	}
}

func breakerOrdinal(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// namedEntity covers the character/corporation/system response shapes; all
// carry a top-level name field.
type namedEntity struct {
	Name string `json:"name"`
}

// marketPrice is one entry of the /markets/prices/ response.
type marketPrice struct {
	TypeID        int32   `json:"type_id"`
	AveragePrice  float64 `json:"average_price"`
	AdjustedPrice float64 `json:"adjusted_price"`
}

// CharacterName resolves a character id to its name.
func (c *Client) CharacterName(ctx context.Context, id int64) (string, error) {
	return c.lookupName(ctx, cache.RegionCharacters, strconv.FormatInt(id, 10),
		fmt.Sprintf("/characters/%d/", id))
}

// CorporationName resolves a corporation id to its name.
func (c *Client) CorporationName(ctx context.Context, id int64) (string, error) {
	return c.lookupName(ctx, cache.RegionCorporations, strconv.FormatInt(id, 10),
		fmt.Sprintf("/corporations/%d/", id))
}

// SystemName resolves a solar system id to its name.
func (c *Client) SystemName(ctx context.Context, id int32) (string, error) {
	return c.lookupName(ctx, cache.RegionSystems, strconv.FormatInt(int64(id), 10),
		fmt.Sprintf("/universe/systems/%d/", id))
}

// ShipTypeName resolves a ship type id to its name.
func (c *Client) ShipTypeName(ctx context.Context, id int32) (string, error) {
	return c.lookupName(ctx, cache.RegionShipTypes, strconv.FormatInt(int64(id), 10),
		fmt.Sprintf("/universe/types/%d/", id))
}

func (c *Client) lookupName(ctx context.Context, region, key, path string) (string, error) {
	if v, ok := c.store.Get(region, key); ok {
		return v.(string), nil
	}

	var entity namedEntity
	if err := c.getJSON(ctx, path, &entity); err != nil {
		return "", err
	}
	if entity.Name == "" {
		return "", fmt.Errorf("esi: empty name for %s", path)
	}

	c.store.Put(region, key, entity.Name, nameTTL)
	return entity.Name, nil
}

// ShipPrice returns the average market price for a ship type. The price list
// is fetched as a whole and fanned out into the cache, so at most one upstream
// call happens per TTL window.
func (c *Client) ShipPrice(ctx context.Context, typeID int32) (float64, error) {
	key := strconv.FormatInt(int64(typeID), 10)
	if v, ok := c.store.Get(cache.RegionPrices, key); ok {
		return v.(float64), nil
	}

	var prices []marketPrice
	if err := c.getJSON(ctx, "/markets/prices/", &prices); err != nil {
		return 0, err
	}

	// Answer from the decoded list; the fan-out below is best-effort and may
	// evict earlier entries when the list exceeds the region cap.
	found := false
	var result float64
	for _, p := range prices {
		price := p.AveragePrice
		if price == 0 {
			price = p.AdjustedPrice
		}
		if p.TypeID == typeID {
			found = true
			result = price
		}
		c.store.Put(cache.RegionPrices, strconv.FormatInt(int64(p.TypeID), 10), price, priceTTL)
	}

	if !found {
		return 0, fmt.Errorf("esi: no price for type %d", typeID)
	}
	// Re-put last so the requested type survives the fan-out's evictions.
	c.store.Put(cache.RegionPrices, key, result, priceTTL)
	return result, nil
}

// getJSON performs a breaker-guarded GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("esi request %s: %w", path, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("esi get %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("esi get %s: HTTP %d", path, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("esi decode %s: %w", path, err)
	}
	return nil
}
