package driving

import (
	"context"
	"time"
)

// IngestionService drives burst ingestion for the configured providers.
type IngestionService interface {
	// Tick evaluates the lifecycle of one provider once.
	Tick(ctx context.Context, provider string) error

	// TickAll ticks every configured provider in turn.
	TickAll(ctx context.Context) error

	// Status reports the lifecycle position of one provider.
	Status(ctx context.Context, provider string) (*IngestionStatus, error)

	// StatusAll reports every configured provider.
	StatusAll(ctx context.Context) ([]IngestionStatus, error)

	// Cancel requests cancellation of a provider's active ingestion.
	Cancel(ctx context.Context, provider, reason string) error

	// Providers returns the configured provider names in configuration order.
	Providers() []string
}

// IngestionStatus is a snapshot of a provider's lifecycle position.
type IngestionStatus struct {
	// Provider is the provider name.
	Provider string

	// Exists is false when no active ingestion has been created yet.
	Exists bool

	// IngestionID is the active ingestion's identity.
	IngestionID string

	// NextAction is what the next tick will do.
	NextAction string

	// State is the sub-state within the action.
	State string

	// NextActionAt is when a rest or backoff period ends.
	NextActionAt time.Time

	// Attempts counts consecutive failed bursts.
	Attempts int

	// LastError is the most recent burst failure.
	LastError string

	// LastSequence is the sequence of the last mark, or -1 when there is none.
	LastSequence int
}
