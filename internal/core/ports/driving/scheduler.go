package driving

import "context"

// Scheduler ticks ingestions in the background.
type Scheduler interface {
	// Start begins ticking due providers.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler, waiting for running ticks.
	Stop() error

	// Trigger marks a provider's tick as due immediately.
	Trigger(provider string)
}
