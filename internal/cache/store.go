// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

// Package cache provides the bounded in-memory store shared by every
// component of the pipeline: dedup records, tracking tables, and reference
// data all live in named regions with a hard entry cap and per-entry TTL.
//
// Each region is serialized by its own mutex; callers never hold references
// into region internals. When a region is at its cap, the oldest entry by
// insertion order is evicted before insert. Insertion-order eviction instead
// of strict LRU keeps the hot path to a map lookup and two pointer swaps.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guarzo/wanderer-notifier-sub002/internal/logging"
	"github.com/guarzo/wanderer-notifier-sub002/internal/metrics"
)

// Well-known region names.
const (
	RegionDedup             = "dedup"
	RegionTrackedSystems    = "tracked_systems"
	RegionTrackedCharacters = "tracked_characters"
	RegionCharacters        = "esi_characters"
	RegionCorporations      = "esi_corporations"
	RegionSystems           = "esi_systems"
	RegionShipTypes         = "esi_ship_types"
	RegionPrices            = "esi_prices"
)

// Config holds store configuration.
type Config struct {
	// RegionCap is the hard cap on resident entries per region.
	// Default: 500
	RegionCap int

	// SweepInterval is how often expired entries are swept.
	// Default: 1m
	SweepInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RegionCap:     500,
		SweepInterval: time.Minute,
	}
}

// Validate reports configuration invariant violations. These are fatal at
// startup and can never occur at runtime.
func (c Config) Validate() error {
	if c.RegionCap <= 0 {
		return fmt.Errorf("cache: region cap must be positive, got %d", c.RegionCap)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("cache: sweep interval must be positive, got %s", c.SweepInterval)
	}
	return nil
}

// entry is a single cached item. Entries form a doubly-linked list in
// insertion order; head.next is the oldest.
type entry struct {
	key       string
	value     any
	createdAt time.Time
	expiresAt time.Time // zero means no expiry
	prev      *entry
	next      *entry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// region is one named cache region with its own lock and insertion list.
type region struct {
	mu    sync.Mutex
	name  string
	cap   int
	items map[string]*entry
	head  *entry // sentinel, head.next is oldest
	tail  *entry // sentinel, tail.prev is newest

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

func newRegion(name string, cap int) *region {
	r := &region{
		name:  name,
		cap:   cap,
		items: make(map[string]*entry, cap),
		head:  &entry{},
		tail:  &entry{},
	}
	r.head.next = r.tail
	r.tail.prev = r.head
	return r
}

// Store manages named bounded cache regions.
type Store struct {
	mu      sync.RWMutex
	regions map[string]*region
	cfg     Config
}

// NewStore creates a store. The configuration must already be validated;
// invalid values return an error rather than being silently corrected.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		regions: make(map[string]*region),
		cfg:     cfg,
	}, nil
}

// regionFor returns the named region, creating it on first use.
func (s *Store) regionFor(name string) *region {
	s.mu.RLock()
	r, ok := s.regions[name]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.regions[name]; ok {
		return r
	}
	r = newRegion(name, s.cfg.RegionCap)
	s.regions[name] = r
	return r
}

// Put stores a value. A ttl <= 0 means the entry never expires (used by the
// tracking tables). If the region is at its cap the oldest entry by insertion
// order is evicted first; eviction is counted, never surfaced as an error.
func (s *Store) Put(regionName, key string, value any, ttl time.Duration) {
	r := s.regionFor(regionName)
	now := time.Now()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.items[key]; ok {
		// Replace in place, preserving insertion position.
		e.value = value
		e.createdAt = now
		e.expiresAt = expiresAt
		return
	}

	for len(r.items) >= r.cap {
		r.evictOldestLocked()
	}

	e := &entry{key: key, value: value, createdAt: now, expiresAt: expiresAt}
	e.prev = r.tail.prev
	e.next = r.tail
	r.tail.prev.next = e
	r.tail.prev = e
	r.items[key] = e

	metrics.CacheSize.WithLabelValues(r.name).Set(float64(len(r.items)))
}

// Get retrieves a value. Expired entries are removed lazily and reported as
// misses.
func (s *Store) Get(regionName, key string) (any, bool) {
	r := s.regionFor(regionName)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[key]
	if !ok {
		r.misses++
		metrics.CacheMisses.WithLabelValues(r.name).Inc()
		return nil, false
	}

	if e.expired(time.Now()) {
		r.removeLocked(e)
		r.expirations++
		r.misses++
		metrics.CacheExpirations.WithLabelValues(r.name).Inc()
		metrics.CacheMisses.WithLabelValues(r.name).Inc()
		return nil, false
	}

	r.hits++
	metrics.CacheHits.WithLabelValues(r.name).Inc()
	return e.value, true
}

// Delete removes an entry. No-op for absent keys.
func (s *Store) Delete(regionName, key string) {
	r := s.regionFor(regionName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.items[key]; ok {
		r.removeLocked(e)
	}
}

// Len returns the number of resident entries in a region, including entries
// that have expired but not yet been swept.
func (s *Store) Len(regionName string) int {
	r := s.regionFor(regionName)

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Keys returns a snapshot of the live (unexpired) keys in a region. Used by
// the determination engine to enumerate tracking tables.
func (s *Store) Keys(regionName string) []string {
	r := s.regionFor(regionName)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.items))
	for e := r.head.next; e != r.tail; e = e.next {
		if !e.expired(now) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// RegionStats is a read-only snapshot of one region's counters.
type RegionStats struct {
	Region      string `json:"region"`
	Entries     int    `json:"entries"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
}

// HitRate returns the hit percentage for the region.
func (st RegionStats) HitRate() float64 {
	total := st.Hits + st.Misses
	if total == 0 {
		return 0
	}
	return float64(st.Hits) / float64(total) * 100
}

// Stats returns a snapshot of every region's counters.
func (s *Store) Stats() []RegionStats {
	s.mu.RLock()
	regions := make([]*region, 0, len(s.regions))
	for _, r := range s.regions {
		regions = append(regions, r)
	}
	s.mu.RUnlock()

	out := make([]RegionStats, 0, len(regions))
	for _, r := range regions {
		r.mu.Lock()
		out = append(out, RegionStats{
			Region:      r.name,
			Entries:     len(r.items),
			Hits:        r.hits,
			Misses:      r.misses,
			Evictions:   r.evictions,
			Expirations: r.expirations,
		})
		r.mu.Unlock()
	}
	return out
}

// String names the service in supervision logs.
func (s *Store) String() string { return "cache-sweeper" }

// Serve sweeps expired entries periodically until the context is canceled.
// Implements suture.Service.
func (s *Store) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := s.sweep()
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("cache sweep completed")
			}
		}
	}
}

// sweep removes all expired entries across regions and returns the count.
func (s *Store) sweep() int {
	s.mu.RLock()
	regions := make([]*region, 0, len(s.regions))
	for _, r := range s.regions {
		regions = append(regions, r)
	}
	s.mu.RUnlock()

	now := time.Now()
	removed := 0
	for _, r := range regions {
		r.mu.Lock()
		for e := r.head.next; e != r.tail; {
			next := e.next
			if e.expired(now) {
				r.removeLocked(e)
				r.expirations++
				metrics.CacheExpirations.WithLabelValues(r.name).Inc()
				removed++
			}
			e = next
		}
		r.mu.Unlock()
	}
	return removed
}

// removeLocked unlinks an entry. Caller holds the region lock.
func (r *region) removeLocked(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(r.items, e.key)
	metrics.CacheSize.WithLabelValues(r.name).Set(float64(len(r.items)))
}

// evictOldestLocked drops the oldest entry by insertion order. Caller holds
// the region lock.
func (r *region) evictOldestLocked() {
	oldest := r.head.next
	if oldest == r.tail {
		return
	}
	r.removeLocked(oldest)
	r.evictions++
	metrics.CacheEvictions.WithLabelValues(r.name).Inc()
}
