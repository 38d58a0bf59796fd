package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// triggerBuffer bounds pending Trigger calls; extra nudges are dropped.
const triggerBuffer = 16

// Scheduler ticks each provider's ingestion on an interval.
// It never runs two ticks for the same provider at once.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	ingestion driving.IngestionService

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	cancel    context.CancelFunc
	triggerCh chan string
	inFlight  map[string]bool
	wg        sync.WaitGroup

	now func() time.Time
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	ingestion driving.IngestionService,
) *Scheduler {
	def := domain.DefaultSchedulerConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = def.TickInterval
	}
	if config.CheckEvery <= 0 {
		config.CheckEvery = def.CheckEvery
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = def.HistoryLimit
	}
	return &Scheduler{
		config:    config,
		store:     store,
		ingestion: ingestion,
		triggerCh: make(chan string, triggerBuffer),
		inFlight:  make(map[string]bool),
		now:       time.Now,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled. Cancelling stops running bursts between pages.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("scheduler: disabled by configuration")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopCh = make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.initialiseTasks(runCtx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(runCtx)
}

// Stop gracefully shuts down the scheduler and waits for running ticks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Trigger marks a provider's tick as due on the next loop iteration.
func (s *Scheduler) Trigger(provider string) {
	select {
	case s.triggerCh <- provider:
	default:
		logger.Debug("scheduler: trigger for %s dropped, queue full", provider)
	}
}

// initialiseTasks ensures a task exists for every configured provider and
// removes tasks of providers that are no longer configured.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	configured := make(map[string]bool)
	for _, provider := range s.ingestion.Providers() {
		configured[domain.TaskID(provider)] = true
		if err := s.ensureTask(ctx, provider); err != nil {
			return err
		}
	}

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if configured[task.ID] {
			continue
		}
		logger.Info("scheduler: removing task %s for unconfigured provider", task.ID)
		if err := s.store.DeleteTask(ctx, task.ID); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates the task for a provider.
// New tasks are due immediately.
func (s *Scheduler) ensureTask(ctx context.Context, provider string) error {
	id := domain.TaskID(provider)
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Provider: provider,
			Interval: s.config.TickInterval,
			Enabled:  true,
		}
	} else if task.Interval != s.config.TickInterval {
		task.Interval = s.config.TickInterval
		task.NextRun = s.now().Add(task.Interval)
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.config.CheckEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case provider := <-s.triggerCh:
			s.markDue(ctx, provider)
			s.checkAndRunDueTasks(ctx)
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// markDue moves a provider's next run to now.
func (s *Scheduler) markDue(ctx context.Context, provider string) {
	task, err := s.store.GetTask(ctx, domain.TaskID(provider))
	if err != nil {
		logger.Error("scheduler: failed to load task for %s: %v", provider, err)
		return
	}
	if task == nil {
		logger.Debug("scheduler: trigger for unknown provider %s ignored", provider)
		return
	}
	task.NextRun = s.now()
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: failed to save task %s: %v", task.ID, err)
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Due(now) {
			continue
		}
		if !s.claim(task.Provider) {
			continue
		}
		s.runTask(ctx, &task)
	}
}

// claim marks a provider's tick as in flight. Returns false if one already is.
func (s *Scheduler) claim(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[provider] {
		return false
	}
	s.inFlight[provider] = true
	return true
}

func (s *Scheduler) release(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, provider)
}

// runTask ticks one provider in the background.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(task.Provider)

		// History is written even when ctx was cancelled mid-tick.
		bg := context.WithoutCancel(ctx)

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		err := s.ingestion.Tick(ctx, task.Provider)

		result.EndedAt = s.now()
		if err != nil {
			result.Success = false
			result.Error = logger.Truncate(err.Error(), maxErrorText)
			task.LastError = result.Error
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}
		if status, statusErr := s.ingestion.Status(bg, task.Provider); statusErr == nil && status != nil {
			result.NextAction = status.NextAction
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(bg, task); saveErr != nil {
			logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}

		if recordErr := s.store.RecordResult(bg, result); recordErr != nil {
			logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}

		if pruneErr := s.store.PruneHistory(bg, s.config.HistoryLimit); pruneErr != nil {
			logger.Error("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}
