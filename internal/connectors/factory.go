package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/github"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/google/drive"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.SourceFactory = (*Factory)(nil)

// Factory creates sources by ingestion type.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]driven.SourceBuilder
}

// NewFactory creates a factory with the built-in source types registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]driven.SourceBuilder)}
	f.Register(filesystem.Type, filesystem.Build)
	f.Register(github.Type, github.Build)
	f.Register(drive.Type, drive.Build)
	return f
}

// Register adds a source builder for the given type, replacing any existing one.
func (f *Factory) Register(sourceType string, builder driven.SourceBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[sourceType] = builder
}

// Create returns a Source for the given provider.
func (f *Factory) Create(
	ctx context.Context,
	provider, sourceType string,
	options map[string]string,
) (driven.Source, error) {
	f.mu.RLock()
	builder, ok := f.builders[sourceType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source type %q: %w", sourceType, domain.ErrUnsupportedType)
	}

	src, err := builder(ctx, provider, options)
	if err != nil {
		return nil, fmt.Errorf("build %s source %s: %w", sourceType, provider, err)
	}
	return src, nil
}

// SupportedTypes returns all registered source types, sorted.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
