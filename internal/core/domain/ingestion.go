package domain

import "time"

// Action is the next step the lifecycle takes for an ingestion.
type Action string

const (
	// ActionIngest runs a burst on the next tick.
	ActionIngest Action = "ingest"

	// ActionRest waits until NextActionAt, then starts a fresh cycle.
	ActionRest Action = "rest"

	// ActionBackoff waits until NextActionAt after a failed burst, then resumes.
	ActionBackoff Action = "backoff"

	// ActionCancel finalizes a cancellation and restarts with a new ingestion.
	ActionCancel Action = "cancel"
)

// IngestionStatus refines the action with where the ingestion currently is.
type IngestionStatus string

const (
	StatusPending      IngestionStatus = "pending"
	StatusBursting     IngestionStatus = "bursting"
	StatusInterstitial IngestionStatus = "interstitial"
	StatusResting      IngestionStatus = "resting"
	StatusBackingOff   IngestionStatus = "backing_off"
	StatusCanceling    IngestionStatus = "canceling"
	StatusCanceled     IngestionStatus = "canceled"
	StatusComplete     IngestionStatus = "complete"
)

// Finished reports whether the status ends an ingestion's lifecycle.
func (s IngestionStatus) Finished() bool {
	return s == StatusCanceled || s == StatusComplete
}

// Ingestion is one lifecycle instance for a provider, from its first
// ingest to the rest period that follows it.
// At most one unfinished ingestion exists per provider name.
type Ingestion struct {
	// ID is the opaque identity assigned at creation.
	ID string

	// ProviderName is the stable key of the source adapter.
	ProviderName string

	// NextAction is what the next tick will do.
	NextAction Action

	// NextActionAt is when a rest or backoff period ends.
	// Ignored for ingest and cancel.
	NextActionAt time.Time

	// Attempts counts consecutive failed bursts since the last success.
	Attempts int

	// Status is the sub-state within the current action.
	Status IngestionStatus

	// LastError is the most recent burst failure, if any.
	LastError string

	// CancelReason records why the ingestion is being canceled.
	CancelReason string

	// BurstStartedAt is when the current or most recent burst began.
	BurstStartedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// FinishedAt is set once the ingestion is complete or canceled.
	FinishedAt time.Time
}

// Active reports whether the ingestion has not yet finished.
func (i *Ingestion) Active() bool {
	return i.FinishedAt.IsZero()
}

// Waiting reports whether a rest or backoff period is still running at now.
func (i *Ingestion) Waiting(now time.Time) bool {
	return !now.After(i.NextActionAt)
}

// IngestionConfig holds per-provider lifecycle settings.
type IngestionConfig struct {
	// RestLength is how long an ingestion rests after a complete cycle.
	RestLength time.Duration

	// Backoff is the delay table for failed bursts.
	Backoff BackoffTable

	// BurstLease is how long a bursting marker is honoured before it is
	// considered abandoned by a crashed process.
	BurstLease time.Duration

	// BurstPageLimit bounds the pages fetched by one burst. Zero means unbounded.
	BurstPageLimit int
}

// Default lifecycle settings.
const (
	DefaultRestLength = 24 * time.Hour
	DefaultBurstLease = 2 * time.Hour
)

// DefaultIngestionConfig returns sensible defaults for an ingestion.
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		RestLength: DefaultRestLength,
		Backoff:    DefaultBackoffTable(),
		BurstLease: DefaultBurstLease,
	}
}

// WithDefaults fills zero values from DefaultIngestionConfig.
func (c IngestionConfig) WithDefaults() IngestionConfig {
	def := DefaultIngestionConfig()
	if c.RestLength <= 0 {
		c.RestLength = def.RestLength
	}
	if len(c.Backoff) == 0 {
		c.Backoff = def.Backoff
	}
	if c.BurstLease <= 0 {
		c.BurstLease = def.BurstLease
	}
	if c.BurstPageLimit < 0 {
		c.BurstPageLimit = 0
	}
	return c
}
