// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockService is a scriptable suture.Service for tree tests: it can fail a
// fixed number of times before settling into a run-until-canceled loop,
// which drives the supervisors' restart path.
type MockService struct {
	name     string
	starts   atomic.Int32
	stops    atomic.Int32
	failures atomic.Int32
}

// NewMockService creates a mock that runs until canceled.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// SetFailCount makes the next n Serve calls return an error.
func (m *MockService) SetFailCount(n int) {
	m.failures.Store(int32(n))
}

// Serve implements suture.Service.
func (m *MockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	defer m.stops.Add(1)

	if m.failures.Add(-1) >= 0 {
		return errors.New("scripted failure")
	}

	<-ctx.Done()
	return ctx.Err()
}

// StartCount reports how many times the supervisor started this service.
func (m *MockService) StartCount() int32 {
	return m.starts.Load()
}

// StopCount reports how many times Serve returned.
func (m *MockService) StopCount() int32 {
	return m.stops.Load()
}

// String names the service in supervision logs.
func (m *MockService) String() string {
	return m.name
}
