package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// targetStore implements driven.TargetStore.
type targetStore struct {
	store *Store
	now   func() time.Time
}

var _ driven.TargetStore = (*targetStore)(nil)

// ApplyMutation applies removals, then additions, in one transaction.
func (s *targetStore) ApplyMutation(ctx context.Context, mutation domain.Mutation) error {
	if mutation.Type != domain.MutationDelta {
		return fmt.Errorf("mutation %q: %w", mutation.Type, domain.ErrUnsupportedType)
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	updatedAt := now().UnixMilli()

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range mutation.Removed {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM entities WHERE provider_name = ? AND entity_key = ?", e.Provider, e.Key); err != nil {
				return fmt.Errorf("removing entity %s: %w", e.Key, err)
			}
		}

		for _, e := range mutation.Added {
			attrs, err := marshalAttributes(e.Attributes)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO entities (provider_name, entity_key, kind, attributes, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(provider_name, entity_key) DO UPDATE SET
					kind = excluded.kind,
					attributes = excluded.attributes,
					updated_at = excluded.updated_at
			`, e.Provider, e.Key, e.Kind, attrs, updatedAt)
			if err != nil {
				return fmt.Errorf("upserting entity %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

// ListEntities returns a provider's entities ordered by key.
func (s *targetStore) ListEntities(ctx context.Context, provider string) ([]domain.Entity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity_key, kind, attributes FROM entities
		WHERE provider_name = ? ORDER BY entity_key
	`, provider)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows, provider)
}
