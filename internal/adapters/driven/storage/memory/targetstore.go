package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure TargetStore implements the interface.
var _ driven.TargetStore = (*TargetStore)(nil)

// TargetStore is an in-memory implementation of driven.TargetStore.
// Entities are keyed by provider and entity key.
type TargetStore struct {
	mu        sync.RWMutex
	entities  map[string]map[string]domain.Entity
	mutations int
}

// NewTargetStore creates a new in-memory target store.
func NewTargetStore() *TargetStore {
	return &TargetStore{
		entities: make(map[string]map[string]domain.Entity),
	}
}

// ApplyMutation applies removals, then additions.
func (s *TargetStore) ApplyMutation(_ context.Context, mutation domain.Mutation) error {
	if mutation.Type != domain.MutationDelta {
		return domain.ErrUnsupportedType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range mutation.Removed {
		if byKey, ok := s.entities[e.Provider]; ok {
			delete(byKey, e.Key)
		}
	}
	for _, e := range mutation.Added {
		byKey, ok := s.entities[e.Provider]
		if !ok {
			byKey = make(map[string]domain.Entity)
			s.entities[e.Provider] = byKey
		}
		byKey[e.Key] = copyEntity(e)
	}
	s.mutations++
	return nil
}

// Entities returns a provider's entities ordered by key.
func (s *TargetStore) Entities(provider string) []domain.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entity, 0, len(s.entities[provider]))
	for _, e := range s.entities[provider] {
		out = append(out, copyEntity(e))
	}
	return sortedEntities(out)
}

// Mutations returns how many mutations have been applied.
func (s *TargetStore) Mutations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mutations
}
