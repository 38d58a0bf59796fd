package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Source pages through one provider's inventory.
// Each source type (filesystem, github, gdrive) implements this interface.
type Source interface {
	// ProviderName returns the stable key identifying this source.
	ProviderName() string

	// Around acquires a fetch session, runs fn once with it and releases the
	// session on every exit path. A session spans a whole burst, not one page.
	Around(ctx context.Context, fn func(ctx context.Context, session FetchSession) error) error
}

// FetchSession fetches pages within one Around scope.
type FetchSession interface {
	// Next returns the page addressed by cursor.
	// An empty cursor requests the first page.
	Next(ctx context.Context, cursor string) (*domain.Page, error)
}

// SourceBuilder creates a Source from provider configuration.
type SourceBuilder func(ctx context.Context, provider string, options map[string]string) (Source, error)

// Watcher is implemented by sources that can observe their inventory change.
// Watch blocks until ctx is done, calling notify (debounced) after changes.
type Watcher interface {
	Watch(ctx context.Context, notify func()) error
}

// SourceFactory creates sources from ingestion configuration.
// It maintains a registry of source types and their builders.
type SourceFactory interface {
	// Create returns a Source for the given provider.
	// Returns ErrUnsupportedType if the source type is unknown.
	Create(ctx context.Context, provider, sourceType string, options map[string]string) (Source, error)

	// Register adds a source builder for the given type.
	Register(sourceType string, builder SourceBuilder)

	// SupportedTypes returns all registered source types.
	SupportedTypes() []string
}
