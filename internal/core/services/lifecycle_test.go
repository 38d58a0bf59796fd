package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestLifecycle_FirstTickRunsFullCycle(t *testing.T) {
	src := newFakeSource("files", []string{"a", "b"}, []string{"c"})
	f := newLifecycleFixture(src, domain.IngestionConfig{RestLength: time.Hour})
	ctx := context.Background()

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing := f.current()
	require.NotNil(t, ing)
	assert.Equal(t, domain.ActionRest, ing.NextAction)
	assert.Equal(t, domain.StatusResting, ing.Status)
	assert.Equal(t, t0.Add(time.Hour), ing.NextActionAt)
	assert.Equal(t, 0, ing.Attempts)

	marks := f.marks(ing.ID)
	require.Len(t, marks, 2)
	assert.Equal(t, 0, marks[0].Sequence)
	assert.Equal(t, "p1", marks[0].Cursor)
	assert.Equal(t, 1, marks[1].Sequence)
	assert.Equal(t, "p2", marks[1].Cursor)

	mutations := f.target.recorded()
	require.Len(t, mutations, 2)
	assert.Equal(t, []string{"a", "b"}, entityKeys(mutations[0].Added))
	assert.NotNil(t, mutations[0].Removed)
	assert.Empty(t, mutations[0].Removed)
	assert.Equal(t, []string{"c"}, entityKeys(mutations[1].Added))
	assert.NotNil(t, mutations[1].Removed, "final page carries an empty removal set")
	assert.Empty(t, mutations[1].Removed)

	entities := f.target.Entities("files")
	assert.Equal(t, []string{"a", "b", "c"}, entityKeys(entities))
	for _, e := range entities {
		assert.Equal(t, "files", e.Provider)
	}

	assert.Equal(t, 1, src.sessions)
	assert.Equal(t, 1, src.released)
}

func TestLifecycle_PageLimitLeavesInterstitial(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"})
	f := newLifecycleFixture(src, domain.IngestionConfig{BurstPageLimit: 1})
	ctx := context.Background()

	require.NoError(t, f.lifecycle.Tick(ctx))
	ing := f.current()
	assert.Equal(t, domain.ActionIngest, ing.NextAction)
	assert.Equal(t, domain.StatusInterstitial, ing.Status)
	assert.Len(t, f.marks(ing.ID), 1)

	require.NoError(t, f.lifecycle.Tick(ctx))
	again := f.current()
	assert.Equal(t, ing.ID, again.ID)
	assert.Equal(t, domain.ActionRest, again.NextAction)

	marks := f.marks(ing.ID)
	require.Len(t, marks, 2)
	assert.Equal(t, 1, marks[1].Sequence)
	assert.Equal(t, []string{"", "p1"}, src.requested())
	assert.Equal(t, 2, src.sessions)
}

func TestLifecycle_ResumesFromLastMark(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"}, []string{"c"})
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	ctx := context.Background()

	// A previous process persisted page 0 and died mid-burst
	ing, err := f.store.CreateIngestion(ctx, "files", t0)
	require.NoError(t, err)
	require.NoError(t, f.store.SetBursting(ctx, ing.ID, t0.Add(-3*time.Hour), time.Hour))
	require.NoError(t, f.store.CreateMark(ctx, domain.Mark{
		ID: "m0", IngestionID: ing.ID, Sequence: 0, Cursor: "p1",
		Entities: []domain.Entity{{Key: "a", Provider: "files"}},
	}))

	require.NoError(t, f.lifecycle.Tick(ctx))

	assert.Equal(t, []string{"p1", "p2"}, src.requested())
	marks := f.marks(ing.ID)
	require.Len(t, marks, 3)
	for i, m := range marks {
		assert.Equal(t, i, m.Sequence)
	}
	assert.Equal(t, domain.ActionRest, f.current().NextAction)
}

func TestLifecycle_BusyBurstIsSkipped(t *testing.T) {
	src := newFakeSource("files", []string{"a"})
	f := newLifecycleFixture(src, domain.IngestionConfig{BurstLease: time.Hour})
	ctx := context.Background()

	ing, err := f.store.CreateIngestion(ctx, "files", t0)
	require.NoError(t, err)
	require.NoError(t, f.store.SetBursting(ctx, ing.ID, t0.Add(-time.Minute), time.Hour))

	require.NoError(t, f.lifecycle.Tick(ctx))

	assert.Empty(t, src.requested())
	assert.Equal(t, domain.StatusBursting, f.current().Status)
}

func TestLifecycle_FailureBacksOff(t *testing.T) {
	src := newFakeSource("files", []string{"a"})
	src.failAt("", errors.New("connection reset"))
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	ctx := context.Background()

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing := f.current()
	assert.Equal(t, domain.ActionBackoff, ing.NextAction)
	assert.Equal(t, domain.StatusBackingOff, ing.Status)
	assert.Equal(t, 1, ing.Attempts)
	assert.Equal(t, t0.Add(time.Minute), ing.NextActionAt)
	assert.Contains(t, ing.LastError, "connection reset")
	assert.Empty(t, f.marks(ing.ID))

	// Still waiting at the boundary
	f.clock.Advance(time.Minute)
	require.NoError(t, f.lifecycle.Tick(ctx))
	assert.Equal(t, domain.ActionBackoff, f.current().NextAction)

	f.clock.Advance(time.Second)
	require.NoError(t, f.lifecycle.Tick(ctx))
	resumed := f.current()
	assert.Equal(t, domain.ActionIngest, resumed.NextAction)
	assert.Equal(t, 1, resumed.Attempts)
	assert.Len(t, src.requested(), 1, "the backoff tick does not burst")

	// A successful burst resets the attempt count
	src.failAt("", nil)
	require.NoError(t, f.lifecycle.Tick(ctx))
	done := f.current()
	assert.Equal(t, domain.ActionRest, done.NextAction)
	assert.Equal(t, 0, done.Attempts)
	assert.Empty(t, done.LastError)
}

func TestLifecycle_BackoffDelayClamps(t *testing.T) {
	src := newFakeSource("files", []string{"a"})
	src.failAt("", errors.New("unavailable"))
	table := domain.BackoffTable{time.Minute, 10 * time.Minute}
	f := newLifecycleFixture(src, domain.IngestionConfig{Backoff: table})
	ctx := context.Background()

	expected := []time.Duration{time.Minute, 10 * time.Minute, 10 * time.Minute, 10 * time.Minute}
	for i, delay := range expected {
		require.NoError(t, f.lifecycle.Tick(ctx))
		ing := f.current()
		require.Equal(t, domain.ActionBackoff, ing.NextAction)
		assert.Equal(t, i+1, ing.Attempts)
		assert.Equal(t, f.clock.Now().Add(delay), ing.NextActionAt, "attempt %d", i+1)

		f.clock.Advance(delay + time.Second)
		require.NoError(t, f.lifecycle.Tick(ctx))
		require.Equal(t, domain.ActionIngest, f.current().NextAction)
	}
}

func TestLifecycle_TargetFailureBacksOffWithoutMark(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"})
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	f.target.err = errors.New("disk full")
	ctx := context.Background()

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing := f.current()
	assert.Equal(t, domain.ActionBackoff, ing.NextAction)
	assert.Contains(t, ing.LastError, "disk full")
	assert.Empty(t, f.marks(ing.ID))
}

func TestLifecycle_SourceCancellation(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "cancel error", err: &domain.CancelError{Reason: "token revoked"}, reason: "token revoked"},
		{name: "sentinel", err: domain.ErrBurstCanceled, reason: "burst canceled"},
		{name: "context canceled", err: context.Canceled, reason: "context canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource("files", []string{"a"})
			src.failAt("", errors.New("flaky"))
			f := newLifecycleFixture(src, domain.IngestionConfig{})
			ctx := context.Background()

			// One ordinary failure first so attempts is non-zero
			require.NoError(t, f.lifecycle.Tick(ctx))
			f.clock.Advance(2 * time.Minute)
			require.NoError(t, f.lifecycle.Tick(ctx))

			src.failAt("", tt.err)
			require.NoError(t, f.lifecycle.Tick(ctx))

			ing := f.current()
			assert.Equal(t, domain.ActionCancel, ing.NextAction)
			assert.Equal(t, domain.StatusCanceling, ing.Status)
			assert.Equal(t, 1, ing.Attempts, "cancellation does not count as an attempt")
			assert.Contains(t, ing.CancelReason, tt.reason)

			// The next tick finalizes and restarts under a new identity
			require.NoError(t, f.lifecycle.Tick(ctx))
			next := f.current()
			require.NotNil(t, next)
			assert.NotEqual(t, ing.ID, next.ID)
			assert.Equal(t, domain.ActionIngest, next.NextAction)
			assert.Equal(t, 0, next.Attempts)
		})
	}
}

func TestLifecycle_StopSignalBetweenPages(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"}, []string{"c"})
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src.onNext = func(cursor string) {
		if cursor == "" {
			cancel()
		}
	}

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing := f.current()
	assert.Equal(t, domain.ActionIngest, ing.NextAction)
	assert.Equal(t, domain.StatusInterstitial, ing.Status)
	assert.Equal(t, 0, ing.Attempts)

	marks := f.marks(ing.ID)
	require.Len(t, marks, 1, "the in-flight page is still recorded")
	assert.Equal(t, "p1", marks[0].Cursor)
	assert.Equal(t, []string{""}, src.requested())
}

func TestLifecycle_StopSignalBeforeBurst(t *testing.T) {
	src := newFakeSource("files", []string{"a"})
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing := f.current()
	require.NotNil(t, ing, "the ingestion is still created")
	assert.Equal(t, domain.StatusPending, ing.Status)
	assert.Empty(t, src.requested())
}

func TestLifecycle_RestThenFreshCycle(t *testing.T) {
	src := newFakeSource("files", []string{"a", "b"}, []string{"c"}, []string{"d"})
	f := newLifecycleFixture(src, domain.IngestionConfig{RestLength: time.Hour})
	ctx := context.Background()

	require.NoError(t, f.lifecycle.Tick(ctx))
	first := f.current()
	require.Equal(t, domain.ActionRest, first.NextAction)

	// Resting ingestions are untouched while waiting
	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.lifecycle.Tick(ctx))
	resting := f.current()
	assert.Equal(t, first.ID, resting.ID)
	assert.Equal(t, first.UpdatedAt, resting.UpdatedAt)

	// b disappeared upstream
	src.setPages([]string{"a"}, []string{"c"}, []string{"d"})
	f.clock.Advance(31 * time.Minute)
	require.NoError(t, f.lifecycle.Tick(ctx))

	second := f.current()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.ActionIngest, second.NextAction)
	assert.Len(t, src.requested(), 3, "the rest tick does not burst")

	require.NoError(t, f.lifecycle.Tick(ctx))

	mutations := f.target.recorded()
	require.Len(t, mutations, 6)
	assert.Empty(t, mutations[3].Removed)
	assert.Equal(t, []string{"b"}, entityKeys(mutations[4].Removed))
	assert.Empty(t, mutations[5].Removed)
	assert.Equal(t, []string{"a", "c", "d"}, entityKeys(f.target.Entities("files")))
	assert.Len(t, f.marks(second.ID), 3)
}

func TestLifecycle_InsertAtFrontKeepsShiftedEntities(t *testing.T) {
	src := newFakeSource("files", []string{"a", "b"}, []string{"c"}, []string{"d"})
	f := newLifecycleFixture(src, domain.IngestionConfig{RestLength: time.Hour, BurstPageLimit: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.lifecycle.Tick(ctx))
	}
	require.Equal(t, domain.ActionRest, f.current().NextAction)

	// a0 was added upstream and pushed b onto the second page
	src.setPages([]string{"a0", "a"}, []string{"b", "c"}, []string{"d"})
	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.lifecycle.Tick(ctx))
	require.Equal(t, domain.ActionIngest, f.current().NextAction)

	before := len(f.target.recorded())
	for i := 0; i < 3; i++ {
		require.NoError(t, f.lifecycle.Tick(ctx))
		assert.Contains(t, entityKeys(f.target.Entities("files")), "b", "b is live after tick %d", i)
	}
	require.Equal(t, domain.ActionRest, f.current().NextAction)

	for _, m := range f.target.recorded()[before:] {
		assert.Empty(t, m.Removed)
	}
	assert.Equal(t, []string{"a", "a0", "b", "c", "d"}, entityKeys(f.target.Entities("files")))
}

func TestLifecycle_CancelDuringBurst(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"})
	f := newLifecycleFixture(src, domain.IngestionConfig{RestLength: time.Hour})
	ctx := context.Background()

	src.onNext = func(cursor string) {
		if cursor == "" {
			require.NoError(t, f.lifecycle.Cancel(ctx, "operator"))
		}
	}

	require.NoError(t, f.lifecycle.Tick(ctx))
	canceling := f.current()
	require.NotNil(t, canceling)
	assert.Equal(t, domain.ActionCancel, canceling.NextAction)
	assert.Equal(t, domain.StatusCanceling, canceling.Status)
	assert.Equal(t, "operator", canceling.CancelReason)

	src.onNext = nil
	require.NoError(t, f.lifecycle.Tick(ctx))
	restarted := f.current()
	require.NotNil(t, restarted)
	assert.NotEqual(t, canceling.ID, restarted.ID)
	assert.Equal(t, domain.ActionIngest, restarted.NextAction)
}

func TestLifecycle_ReappliesPageAfterMarkFailure(t *testing.T) {
	store := &flakyMarkStore{
		IngestionStore: memory.NewIngestionStore(),
		failSequence:   1,
		err:            errors.New("disk I/O error"),
	}
	src := newFakeSource("files", []string{"a"}, []string{"b"}, []string{"c"})
	target := newRecordingTarget()
	clock := newFakeClock()

	l := NewLifecycle(store, src, target, domain.IngestionConfig{RestLength: time.Hour})
	l.now = clock.Now
	l.burst.now = clock.Now
	ctx := context.Background()

	// Page 1 reaches the target but its mark is lost
	require.NoError(t, l.Tick(ctx))
	ing, err := store.GetCurrentIngestion(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBackoff, ing.NextAction)
	assert.Equal(t, 1, ing.Attempts)
	require.Len(t, target.recorded(), 2)

	clock.Advance(2 * time.Minute)
	require.NoError(t, l.Tick(ctx))
	require.NoError(t, l.Tick(ctx))

	ing, err = store.GetCurrentIngestion(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRest, ing.NextAction)
	assert.Equal(t, []string{"", "p1", "p1", "p2"}, src.requested())

	mutations := target.recorded()
	require.Len(t, mutations, 4)
	applied := make([]string, len(mutations))
	for i, m := range mutations {
		applied[i] = entityKeys(m.Added)[0]
	}
	assert.Equal(t, []string{"a", "b", "b", "c"}, applied, "only the page without a mark is applied twice")

	marks, err := store.ListMarks(ctx, ing.ID)
	require.NoError(t, err)
	require.Len(t, marks, 3)
	for i, m := range marks {
		assert.Equal(t, i, m.Sequence)
	}
}

func TestLifecycle_Cancel(t *testing.T) {
	src := newFakeSource("files", []string{"a"})
	src.failAt("", errors.New("boom"))
	f := newLifecycleFixture(src, domain.IngestionConfig{})
	ctx := context.Background()

	err := f.lifecycle.Cancel(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.lifecycle.Tick(ctx))
	require.NoError(t, f.lifecycle.Cancel(ctx, ""))

	ing := f.current()
	assert.Equal(t, domain.ActionCancel, ing.NextAction)
	assert.Equal(t, "canceled by operator", ing.CancelReason)

	require.NoError(t, f.lifecycle.Tick(ctx))
	assert.NotEqual(t, ing.ID, f.current().ID)
}

func TestLifecycle_Status(t *testing.T) {
	src := newFakeSource("files", []string{"a"}, []string{"b"})
	f := newLifecycleFixture(src, domain.IngestionConfig{BurstPageLimit: 1})
	ctx := context.Background()

	ing, last, err := f.lifecycle.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, ing)
	assert.Nil(t, last)

	require.NoError(t, f.lifecycle.Tick(ctx))

	ing, last, err = f.lifecycle.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, ing)
	require.NotNil(t, last)
	assert.Equal(t, 0, last.Sequence)
	assert.Equal(t, []string{"a"}, entityKeys(last.Entities))
}

func TestLifecycle_StoreFailureIsReturned(t *testing.T) {
	storeErr := errors.New("database is locked")
	store := &failingStore{IngestionStore: memory.NewIngestionStore(), err: storeErr}
	src := newFakeSource("files", []string{"a"})
	l := NewLifecycle(store, src, newRecordingTarget(), domain.IngestionConfig{})

	err := l.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "tick files")
	assert.Empty(t, src.requested())
}

func TestLifecycle_UnrecognizedActionIsNoop(t *testing.T) {
	store := &stubbedStore{
		IngestionStore: memory.NewIngestionStore(),
		current:        &domain.Ingestion{ID: "ing-1", ProviderName: "files", NextAction: domain.Action("reindex")},
	}
	src := newFakeSource("files", []string{"a"})
	target := newRecordingTarget()
	l := NewLifecycle(store, src, target, domain.IngestionConfig{})

	require.NoError(t, l.Tick(context.Background()))
	assert.Empty(t, src.requested())
	assert.Empty(t, target.recorded())
	assert.Zero(t, store.creates)
}

func TestLifecycle_MissingRecordAfterCreateIsNoop(t *testing.T) {
	store := &stubbedStore{IngestionStore: memory.NewIngestionStore()}
	src := newFakeSource("files", []string{"a"})
	l := NewLifecycle(store, src, newRecordingTarget(), domain.IngestionConfig{})

	require.NoError(t, l.Tick(context.Background()))
	assert.Equal(t, 1, store.creates)
	assert.Empty(t, src.requested())
}
