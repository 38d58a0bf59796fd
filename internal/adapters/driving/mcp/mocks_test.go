package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	statuses []driving.IngestionStatus
	err      error

	ticked   []string
	tickAll  int
	canceled map[string]string
}

func (m *mockIngestionService) Tick(_ context.Context, provider string) error {
	m.ticked = append(m.ticked, provider)
	return m.err
}

func (m *mockIngestionService) TickAll(_ context.Context) error {
	m.tickAll++
	return m.err
}

func (m *mockIngestionService) Status(_ context.Context, provider string) (*driving.IngestionStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.statuses {
		if m.statuses[i].Provider == provider {
			st := m.statuses[i]
			return &st, nil
		}
	}
	return nil, fmt.Errorf("provider %q: %w", provider, domain.ErrNotFound)
}

func (m *mockIngestionService) StatusAll(_ context.Context) ([]driving.IngestionStatus, error) {
	return m.statuses, m.err
}

func (m *mockIngestionService) Cancel(_ context.Context, provider, reason string) error {
	if m.err != nil {
		return m.err
	}
	if m.canceled == nil {
		m.canceled = make(map[string]string)
	}
	m.canceled[provider] = reason
	return nil
}

func (m *mockIngestionService) Providers() []string {
	out := make([]string, len(m.statuses))
	for i, st := range m.statuses {
		out[i] = st.Provider
	}
	return out
}

// mockScheduler is a mock implementation of driving.Scheduler.
type mockScheduler struct {
	mu        sync.Mutex
	triggered []string
}

func (m *mockScheduler) Start(_ context.Context) error { return nil }

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) Trigger(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = append(m.triggered, provider)
}
