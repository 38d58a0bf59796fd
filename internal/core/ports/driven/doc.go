// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - IngestionStore: Ingestion lifecycle and progress mark persistence
//   - Source: Pages through a provider's inventory
//   - TargetStore: Receives per-mark mutations
//
// # Optional Interfaces
//
//   - SchedulerStore: Tick schedule and history. Only the process scheduler uses it.
//   - Watcher: Implemented by sources that can report changes between ticks
//   - SourceFactory: Builds sources by type from configured options
//
// # Concurrency Contract
//
// IngestionStore implementations provide atomic transitions. Several processes
// may tick the same provider; the store's get-or-create, compare-and-set of the
// bursting marker and append-only mark creation are what keep at most one burst
// running per ingestion.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
