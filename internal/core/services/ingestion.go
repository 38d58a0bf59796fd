package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService drives the lifecycles of all configured providers.
type IngestionService struct {
	lifecycles map[string]*Lifecycle
	order      []string
}

// NewIngestionService creates the service over the given lifecycles.
// Provider names must be unique; later duplicates are ignored.
func NewIngestionService(lifecycles ...*Lifecycle) *IngestionService {
	s := &IngestionService{
		lifecycles: make(map[string]*Lifecycle, len(lifecycles)),
	}
	for _, l := range lifecycles {
		name := l.ProviderName()
		if _, exists := s.lifecycles[name]; exists {
			continue
		}
		s.lifecycles[name] = l
		s.order = append(s.order, name)
	}
	return s
}

// Tick evaluates the lifecycle of one provider once.
func (s *IngestionService) Tick(ctx context.Context, provider string) error {
	l, err := s.lifecycle(provider)
	if err != nil {
		return err
	}
	return l.Tick(ctx)
}

// TickAll ticks every configured provider in configuration order.
// A failing provider does not stop the others.
func (s *IngestionService) TickAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.order {
		if err := s.lifecycles[name].Tick(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Status reports the lifecycle position of one provider.
func (s *IngestionService) Status(ctx context.Context, provider string) (*driving.IngestionStatus, error) {
	l, err := s.lifecycle(provider)
	if err != nil {
		return nil, err
	}

	ing, last, err := l.Status(ctx)
	if err != nil {
		return nil, err
	}

	status := &driving.IngestionStatus{
		Provider:     provider,
		LastSequence: -1,
	}
	if ing == nil {
		return status, nil
	}

	status.Exists = true
	status.IngestionID = ing.ID
	status.NextAction = string(ing.NextAction)
	status.State = string(ing.Status)
	status.NextActionAt = ing.NextActionAt
	status.Attempts = ing.Attempts
	status.LastError = ing.LastError
	if last != nil {
		status.LastSequence = last.Sequence
	}
	return status, nil
}

// StatusAll reports every configured provider.
func (s *IngestionService) StatusAll(ctx context.Context) ([]driving.IngestionStatus, error) {
	out := make([]driving.IngestionStatus, 0, len(s.order))
	for _, name := range s.order {
		status, err := s.Status(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("status %s: %w", name, err)
		}
		out = append(out, *status)
	}
	return out, nil
}

// Cancel requests cancellation of a provider's active ingestion.
func (s *IngestionService) Cancel(ctx context.Context, provider, reason string) error {
	l, err := s.lifecycle(provider)
	if err != nil {
		return err
	}
	return l.Cancel(ctx, reason)
}

// Providers returns the configured provider names in configuration order.
func (s *IngestionService) Providers() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *IngestionService) lifecycle(provider string) (*Lifecycle, error) {
	l, ok := s.lifecycles[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", provider, domain.ErrNotFound)
	}
	return l, nil
}
