// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion core is split into three parts:
//
//   - BurstExecutor: one bounded pass over a source, persisting a mark per page
//   - Lifecycle: the per-provider state machine evaluated once per tick
//   - IngestionService: the driving port over all configured providers
//
// Scheduler is the process-level trigger used by the run command; the core
// itself does not depend on it.
//
// Services are pure Go with no CGO. Apart from the ports they only depend on
// the logger and on uuid for mark identities.
package services
