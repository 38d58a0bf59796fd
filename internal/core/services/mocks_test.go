package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// --- Test doubles shared by the service tests ---

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSource serves pages keyed by cursor.
type fakeSource struct {
	name string

	mu       sync.Mutex
	pages    map[string]*domain.Page
	errs     map[string]error
	cursors  []string
	sessions int
	released int
	onNext   func(cursor string)
}

func newFakeSource(name string, pageKeys ...[]string) *fakeSource {
	s := &fakeSource{name: name, errs: make(map[string]error)}
	s.setPages(pageKeys...)
	return s
}

// setPages replaces the inventory. Page i is served at cursor "" for i == 0
// and "p<i>" otherwise; the last page is final.
func (s *fakeSource) setPages(pageKeys ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[string]*domain.Page, len(pageKeys))
	for i, keys := range pageKeys {
		entities := make([]domain.Entity, len(keys))
		for j, k := range keys {
			entities[j] = domain.Entity{Key: k, Kind: "file", Attributes: map[string]string{"page": fmt.Sprint(i)}}
		}
		s.pages[pageCursor(i)] = &domain.Page{
			Entities: entities,
			Cursor:   pageCursor(i + 1),
			Done:     i == len(pageKeys)-1,
		}
	}
}

func (s *fakeSource) failAt(cursor string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, cursor)
		return
	}
	s.errs[cursor] = err
}

func (s *fakeSource) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cursors))
	copy(out, s.cursors)
	return out
}

func pageCursor(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("p%d", i)
}

func (s *fakeSource) ProviderName() string { return s.name }

func (s *fakeSource) Around(ctx context.Context, fn func(context.Context, driven.FetchSession) error) error {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}()
	return fn(ctx, fakeSession{s})
}

type fakeSession struct{ s *fakeSource }

func (f fakeSession) Next(_ context.Context, cursor string) (*domain.Page, error) {
	s := f.s
	s.mu.Lock()
	s.cursors = append(s.cursors, cursor)
	hook := s.onNext
	err := s.errs[cursor]
	page, ok := s.pages[cursor]
	s.mu.Unlock()

	if hook != nil {
		hook(cursor)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown cursor %q", cursor)
	}
	cp := *page
	return &cp, nil
}

// recordingTarget records mutations before applying them to a memory store.
type recordingTarget struct {
	*memory.TargetStore

	mu        sync.Mutex
	mutations []domain.Mutation
	err       error
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{TargetStore: memory.NewTargetStore()}
}

func (r *recordingTarget) ApplyMutation(ctx context.Context, m domain.Mutation) error {
	r.mu.Lock()
	err := r.err
	if err == nil {
		r.mutations = append(r.mutations, m)
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.TargetStore.ApplyMutation(ctx, m)
}

func (r *recordingTarget) recorded() []domain.Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Mutation, len(r.mutations))
	copy(out, r.mutations)
	return out
}

// failingStore fails reads of the current ingestion.
type failingStore struct {
	*memory.IngestionStore
	err error
}

func (f *failingStore) GetCurrentIngestion(context.Context, string) (*domain.Ingestion, error) {
	return nil, f.err
}

// lifecycleFixture wires a lifecycle to in-memory stores and a fake clock.
type lifecycleFixture struct {
	lifecycle *Lifecycle
	store     *memory.IngestionStore
	target    *recordingTarget
	source    *fakeSource
	clock     *fakeClock
}

func newLifecycleFixture(source *fakeSource, config domain.IngestionConfig) *lifecycleFixture {
	store := memory.NewIngestionStore()
	target := newRecordingTarget()
	clock := newFakeClock()

	l := NewLifecycle(store, source, target, config)
	l.now = clock.Now
	l.burst.now = clock.Now

	return &lifecycleFixture{
		lifecycle: l,
		store:     store,
		target:    target,
		source:    source,
		clock:     clock,
	}
}

func (f *lifecycleFixture) current() *domain.Ingestion {
	ing, err := f.store.GetCurrentIngestion(context.Background(), f.source.name)
	if err != nil {
		panic(err)
	}
	return ing
}

func (f *lifecycleFixture) marks(ingestionID string) []domain.Mark {
	marks, err := f.store.ListMarks(context.Background(), ingestionID)
	if err != nil {
		panic(err)
	}
	return marks
}

func entityKeys(entities []domain.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Key
	}
	return out
}

// stubbedStore returns a fixed current ingestion and never creates one.
type stubbedStore struct {
	*memory.IngestionStore
	current *domain.Ingestion
	creates int
}

func (s *stubbedStore) GetCurrentIngestion(context.Context, string) (*domain.Ingestion, error) {
	return s.current, nil
}

func (s *stubbedStore) CreateIngestion(context.Context, string, time.Time) (*domain.Ingestion, error) {
	s.creates++
	return nil, nil
}

// flakyMarkStore fails the first attempt to persist the mark at failSequence.
type flakyMarkStore struct {
	*memory.IngestionStore
	failSequence int
	err          error
	failed       bool
}

func (s *flakyMarkStore) CreateMark(ctx context.Context, mark domain.Mark) error {
	if mark.Sequence == s.failSequence && !s.failed {
		s.failed = true
		return s.err
	}
	return s.IngestionStore.CreateMark(ctx, mark)
}
