package domain

import "time"

// ScheduledTask represents the recurring tick for one provider.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Provider is the provider name the task ticks.
	Provider string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// TaskResult represents the outcome of one tick.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the tick started.
	StartedAt time.Time

	// EndedAt is when the tick completed.
	EndedAt time.Time

	// Success indicates whether the tick returned without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// NextAction is the ingestion's next action after the tick, if known.
	NextAction string
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TickInterval is how often each provider is ticked.
	TickInterval time.Duration

	// CheckEvery is how often the scheduler looks for due tasks.
	CheckEvery time.Duration

	// HistoryLimit is how many results are kept per task.
	HistoryLimit int
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:      true,
		TickInterval: 5 * time.Minute,
		CheckEvery:   1 * time.Minute,
		HistoryLimit: 100,
	}
}

// TaskID returns the scheduled task ID for a provider.
func TaskID(provider string) string {
	return "ingest:" + provider
}
