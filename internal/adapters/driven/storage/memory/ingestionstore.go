package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure IngestionStore implements the interface.
var _ driven.IngestionStore = (*IngestionStore)(nil)

// IngestionStore is an in-memory implementation of driven.IngestionStore.
type IngestionStore struct {
	mu         sync.RWMutex
	ingestions map[string]*domain.Ingestion
	marks      map[string][]domain.Mark
}

// NewIngestionStore creates a new in-memory ingestion store.
func NewIngestionStore() *IngestionStore {
	return &IngestionStore{
		ingestions: make(map[string]*domain.Ingestion),
		marks:      make(map[string][]domain.Mark),
	}
}

// GetCurrentIngestion returns the active ingestion for a provider.
func (s *IngestionStore) GetCurrentIngestion(_ context.Context, providerName string) (*domain.Ingestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ing := s.activeLocked(providerName); ing != nil {
		cp := *ing
		return &cp, nil
	}
	return nil, nil
}

// CreateIngestion creates an ingestion unless one is already active.
func (s *IngestionStore) CreateIngestion(_ context.Context, providerName string, at time.Time) (*domain.Ingestion, error) {
	if providerName == "" {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ing := s.activeLocked(providerName); ing != nil {
		cp := *ing
		return &cp, nil
	}

	ing := &domain.Ingestion{
		ID:           uuid.NewString(),
		ProviderName: providerName,
		NextAction:   domain.ActionIngest,
		Status:       domain.StatusPending,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	s.ingestions[ing.ID] = ing
	cp := *ing
	return &cp, nil
}

// SetIngesting resets the ingestion to ingest.
func (s *IngestionStore) SetIngesting(_ context.Context, ingestionID string, at time.Time) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		ing.NextAction = domain.ActionIngest
		ing.Status = domain.StatusPending
		ing.NextActionAt = time.Time{}
		return nil
	})
}

// SetBursting claims the burst unless an unexpired lease is held.
func (s *IngestionStore) SetBursting(_ context.Context, ingestionID string, at time.Time, lease time.Duration) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		if ing.NextAction != domain.ActionIngest {
			return domain.ErrIngestionBusy
		}
		if ing.Status == domain.StatusBursting && at.Before(ing.BurstStartedAt.Add(lease)) {
			return domain.ErrIngestionBusy
		}
		ing.NextAction = domain.ActionIngest
		ing.Status = domain.StatusBursting
		ing.BurstStartedAt = at
		return nil
	})
}

// SetInterstitial records a partial burst.
func (s *IngestionStore) SetInterstitial(_ context.Context, ingestionID string, burstStartedAt, at time.Time) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		if !inBurst(ing, burstStartedAt) {
			return domain.ErrBurstSuperseded
		}
		ing.NextAction = domain.ActionIngest
		ing.Status = domain.StatusInterstitial
		ing.Attempts = 0
		ing.LastError = ""
		return nil
	})
}

// SetResting records a completed cycle.
func (s *IngestionStore) SetResting(
	_ context.Context,
	ingestionID string,
	burstStartedAt, at time.Time,
	restLength time.Duration,
) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		if !inBurst(ing, burstStartedAt) {
			return domain.ErrBurstSuperseded
		}
		ing.NextAction = domain.ActionRest
		ing.Status = domain.StatusResting
		ing.NextActionAt = at.Add(restLength)
		ing.Attempts = 0
		ing.LastError = ""
		return nil
	})
}

// SetBackoff records a failed burst.
func (s *IngestionStore) SetBackoff(
	_ context.Context,
	ingestionID string,
	burstStartedAt, at time.Time,
	attempts int,
	errText string,
	delay time.Duration,
) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		if !inBurst(ing, burstStartedAt) {
			return domain.ErrBurstSuperseded
		}
		ing.NextAction = domain.ActionBackoff
		ing.Status = domain.StatusBackingOff
		ing.NextActionAt = at.Add(delay)
		ing.Attempts = attempts
		ing.LastError = errText
		return nil
	})
}

// SetCanceling moves the ingestion to the cancel action.
func (s *IngestionStore) SetCanceling(_ context.Context, ingestionID string, at time.Time, reason string) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		ing.NextAction = domain.ActionCancel
		ing.Status = domain.StatusCanceling
		ing.CancelReason = reason
		return nil
	})
}

// SetCanceled finishes a canceled ingestion.
func (s *IngestionStore) SetCanceled(_ context.Context, ingestionID string, at time.Time) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		ing.Status = domain.StatusCanceled
		ing.FinishedAt = at
		return nil
	})
}

// SetComplete finishes an ingestion after its rest period.
func (s *IngestionStore) SetComplete(_ context.Context, ingestionID string, at time.Time) error {
	return s.update(ingestionID, at, func(ing *domain.Ingestion) error {
		ing.Status = domain.StatusComplete
		ing.FinishedAt = at
		return nil
	})
}

// ClearFinishedIngestions removes finished ingestions of a provider and their marks.
func (s *IngestionStore) ClearFinishedIngestions(_ context.Context, providerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ing := range s.ingestions {
		if ing.ProviderName == providerName && !ing.Active() {
			delete(s.ingestions, id)
			delete(s.marks, id)
		}
	}
	return nil
}

// GetLastMark returns the highest-sequence mark of an ingestion.
func (s *IngestionStore) GetLastMark(_ context.Context, ingestionID string) (*domain.Mark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marks := s.marks[ingestionID]
	if len(marks) == 0 {
		return nil, nil
	}
	m := copyMark(marks[len(marks)-1], true)
	return &m, nil
}

// CreateMark persists a mark and its entities.
func (s *IngestionStore) CreateMark(_ context.Context, mark domain.Mark) error {
	if mark.ID == "" || mark.IngestionID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingestions[mark.IngestionID]; !ok {
		return domain.ErrNotFound
	}
	marks := s.marks[mark.IngestionID]
	var last *domain.Mark
	if len(marks) > 0 {
		last = &marks[len(marks)-1]
	}
	if mark.Sequence != domain.NextSequence(last) {
		return domain.ErrMarkOutOfOrder
	}

	mark.Entities = upsertEntities(nil, mark.Entities)
	s.marks[mark.IngestionID] = append(marks, mark)
	return nil
}

// ComputeRemoved returns entities recorded by the provider's most recently
// completed ingestion at the mark before sequence that the current ingestion
// has not recorded.
func (s *IngestionStore) ComputeRemoved(
	_ context.Context,
	providerName, ingestionID string,
	sequence int,
) ([]domain.Entity, error) {
	if sequence <= 0 {
		return []domain.Entity{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var previous *domain.Ingestion
	for _, ing := range s.ingestions {
		if ing.ProviderName != providerName || ing.Status != domain.StatusComplete {
			continue
		}
		if previous == nil || ing.FinishedAt.After(previous.FinishedAt) {
			previous = ing
		}
	}
	if previous == nil {
		return []domain.Entity{}, nil
	}

	seen := make(map[string]struct{})
	for _, m := range s.marks[ingestionID] {
		for _, e := range m.Entities {
			seen[e.Key] = struct{}{}
		}
	}

	removed := []domain.Entity{}
	for _, m := range s.marks[previous.ID] {
		if m.Sequence != sequence-1 {
			continue
		}
		for _, e := range m.Entities {
			if _, ok := seen[e.Key]; !ok {
				removed = append(removed, copyEntity(e))
			}
		}
	}
	return removed, nil
}

// ListMarks returns an ingestion's marks without entities.
func (s *IngestionStore) ListMarks(_ context.Context, ingestionID string) ([]domain.Mark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marks := s.marks[ingestionID]
	out := make([]domain.Mark, len(marks))
	for i, m := range marks {
		out[i] = copyMark(m, false)
	}
	return out, nil
}

// update applies fn to an active ingestion and stamps UpdatedAt.
// fn's changes are discarded when it returns an error.
func (s *IngestionStore) update(ingestionID string, at time.Time, fn func(*domain.Ingestion) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ing, ok := s.ingestions[ingestionID]
	if !ok || !ing.Active() {
		return domain.ErrNotFound
	}
	next := *ing
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = at
	*ing = next
	return nil
}

// inBurst reports whether ing is still bursting under the claim made at startedAt.
func inBurst(ing *domain.Ingestion, startedAt time.Time) bool {
	return ing.Status == domain.StatusBursting && ing.BurstStartedAt.Equal(startedAt)
}

func (s *IngestionStore) activeLocked(providerName string) *domain.Ingestion {
	for _, ing := range s.ingestions {
		if ing.ProviderName == providerName && ing.Active() {
			return ing
		}
	}
	return nil
}

// upsertEntities merges entities into dst by key, later entries winning.
func upsertEntities(dst, entities []domain.Entity) []domain.Entity {
	index := make(map[string]int, len(dst))
	for i, e := range dst {
		index[e.Key] = i
	}
	for _, e := range entities {
		e = copyEntity(e)
		if i, ok := index[e.Key]; ok {
			dst[i] = e
			continue
		}
		index[e.Key] = len(dst)
		dst = append(dst, e)
	}
	return dst
}

func copyMark(m domain.Mark, withEntities bool) domain.Mark {
	if !withEntities {
		m.Entities = nil
		return m
	}
	entities := make([]domain.Entity, len(m.Entities))
	for i, e := range m.Entities {
		entities[i] = copyEntity(e)
	}
	m.Entities = entities
	return m
}

func copyEntity(e domain.Entity) domain.Entity {
	if e.Attributes != nil {
		attrs := make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		e.Attributes = attrs
	}
	return e
}

// sortedEntities returns entities ordered by key.
func sortedEntities(entities []domain.Entity) []domain.Entity {
	sort.Slice(entities, func(i, j int) bool { return entities[i].Key < entities[j].Key })
	return entities
}
