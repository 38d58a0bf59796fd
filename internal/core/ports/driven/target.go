package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// TargetStore receives the synchronised inventory.
type TargetStore interface {
	// ApplyMutation applies one mark's delta.
	// Removals are applied before additions.
	ApplyMutation(ctx context.Context, mutation domain.Mutation) error
}
