package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// BurstExecutor drives one bounded pass over a source adapter, applying a
// delta to the target store and persisting a progress mark for every page.
type BurstExecutor struct {
	store     driven.IngestionStore
	source    driven.Source
	target    driven.TargetStore
	pageLimit int

	now   func() time.Time
	newID func() string
}

// NewBurstExecutor creates a burst executor.
// A pageLimit of zero lets a burst run until the source is exhausted.
func NewBurstExecutor(
	store driven.IngestionStore,
	source driven.Source,
	target driven.TargetStore,
	pageLimit int,
) *BurstExecutor {
	return &BurstExecutor{
		store:     store,
		source:    source,
		target:    target,
		pageLimit: pageLimit,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// burstStats records progress for observability.
type burstStats struct {
	pages    int
	added    int
	removed  int
	started  time.Time
	fetching time.Duration
}

// Run executes one burst for the ingestion and reports whether the source
// signalled its final page.
//
// The cancellation signal carried by ctx is only checked between pages. The
// in-flight fetch and all store and target writes run on a context detached
// from that signal so a page is either fully recorded or not at all.
// Stopping on the signal is a partial burst, not a failure. Failures are
// returned unchanged in kind: a cancellation raised by the source satisfies
// domain.IsCanceled, anything else does not.
func (e *BurstExecutor) Run(ctx context.Context, ingestionID string) (bool, error) {
	work := context.WithoutCancel(ctx)
	provider := e.source.ProviderName()

	// 1. Resume from the last persisted mark
	last, err := e.store.GetLastMark(work, ingestionID)
	if err != nil {
		return false, &domain.StoreError{Op: "get last mark", Err: err}
	}
	cursor := ""
	if last != nil {
		cursor = last.Cursor
	}
	sequence := domain.NextSequence(last)

	stats := &burstStats{started: e.now()}
	completed := false

	logger.Debug("burst %s: resuming at sequence %d", ingestionID, sequence)

	// 2. One fetch session for the whole burst
	err = e.source.Around(work, func(sctx context.Context, session driven.FetchSession) error {
		for {
			// 3. Request the next page
			fetchStart := e.now()
			page, err := session.Next(sctx, cursor)
			if err != nil {
				return &domain.SourceError{Provider: provider, Op: "next", Err: err}
			}
			if page == nil {
				page = &domain.Page{Done: true}
			}
			elapsed := e.now().Sub(fetchStart)
			stats.fetching += elapsed
			stats.pages++

			logger.Debug("burst %s: page %d (%d entities, done=%t) fetched in %s",
				ingestionID, sequence, len(page.Entities), page.Done, elapsed)

			// 4-5. Apply the page's delta, then record the mark
			if err := e.applyPage(work, provider, ingestionID, sequence, page, stats); err != nil {
				return err
			}

			cursor = page.Cursor
			sequence++

			if page.Done {
				completed = true
				return nil
			}
			if e.pageLimit > 0 && stats.pages >= e.pageLimit {
				logger.Debug("burst %s: page limit %d reached", ingestionID, e.pageLimit)
				return nil
			}
			if ctx.Err() != nil {
				logger.Info("burst %s: stop requested after %d pages", ingestionID, stats.pages)
				return nil
			}
		}
	})

	logger.Info("burst %s: %d pages, +%d/-%d entities in %s (fetching %s), completed=%t",
		ingestionID, stats.pages, stats.added, stats.removed,
		e.now().Sub(stats.started).Round(time.Millisecond), stats.fetching.Round(time.Millisecond), completed)

	if err != nil {
		return false, err
	}
	// 6. Report whether the final page was reached
	return completed, nil
}

// applyPage computes the delta for one page, applies it to the target store
// and persists the page's mark.
//
// The mark is written after the mutation: if the process dies in between,
// the resumed burst re-fetches and re-applies exactly this page; if the
// mutation fails no mark is written and nothing is skipped.
func (e *BurstExecutor) applyPage(
	ctx context.Context,
	provider, ingestionID string,
	sequence int,
	page *domain.Page,
	stats *burstStats,
) error {
	added := make([]domain.Entity, len(page.Entities))
	for i, entity := range page.Entities {
		added[i] = entity.WithProvenance(provider)
	}

	// The final page carries no removals; full-cycle removals are left to
	// the rest-period reconciliation.
	removed := []domain.Entity{}
	if !page.Done {
		candidates, err := e.store.ComputeRemoved(ctx, provider, ingestionID, sequence)
		if err != nil {
			return &domain.StoreError{Op: "compute removed", Err: err}
		}
		removed = excludeKeys(candidates, added)
	}

	delta := domain.Delta{Added: added, Removed: removed}
	if err := e.target.ApplyMutation(ctx, delta.Mutation()); err != nil {
		return &domain.TargetError{Sequence: sequence, Err: err}
	}

	mark := domain.Mark{
		ID:          e.newID(),
		IngestionID: ingestionID,
		Sequence:    sequence,
		Cursor:      page.Cursor,
		Entities:    added,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateMark(ctx, mark); err != nil {
		return &domain.StoreError{Op: fmt.Sprintf("create mark %d", sequence), Err: err}
	}

	stats.added += len(added)
	stats.removed += len(removed)
	return nil
}

// excludeKeys returns the candidates whose keys do not appear in present.
func excludeKeys(candidates, present []domain.Entity) []domain.Entity {
	if len(candidates) == 0 {
		return []domain.Entity{}
	}
	seen := make(map[string]struct{}, len(present))
	for _, e := range present {
		seen[e.Key] = struct{}{}
	}
	out := make([]domain.Entity, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Key]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
