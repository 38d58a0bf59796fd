package cli

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// mockIngestionService implements driving.IngestionService for testing.
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
	for i := range m.statuses {
		if m.statuses[i].Provider == provider {
			st := m.statuses[i]
			return &st, nil
		}
	}
	return nil, fmt.Errorf("provider %q: %w", provider, domain.ErrNotFound)
}

func (m *mockIngestionService) StatusAll(_ context.Context) ([]driving.IngestionStatus, error) {
	return m.statuses, nil
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

// mockScheduler implements driving.Scheduler for testing.
// Start blocks until ctx is done when block is set.
type mockScheduler struct {
	mu        sync.Mutex
	block     bool
	started   int
	stopped   int
	triggered []string
	onStart   func()
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started++
	onStart := m.onStart
	m.mu.Unlock()
	if onStart != nil {
		onStart()
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

func (m *mockScheduler) Trigger(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = append(m.triggered, provider)
}

func (m *mockScheduler) triggers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.triggered...)
}

// mockWatcher implements driven.Watcher, notifying once then waiting for ctx.
type mockWatcher struct{}

func (mockWatcher) Watch(ctx context.Context, notify func()) error {
	notify()
	<-ctx.Done()
	return nil
}

var _ driven.Watcher = mockWatcher{}

// setupApp installs a on the command tree and restores global state afterwards.
func setupApp(t *testing.T, a *App) {
	t.Helper()
	oldApp, oldBootstrap := app, bootstrap
	app = a
	t.Cleanup(func() {
		app, bootstrap = oldApp, oldBootstrap
		_ = cancelCmd.Flags().Set("reason", "")
		_ = runCmd.Flags().Set("watch", "false")
	})
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}
