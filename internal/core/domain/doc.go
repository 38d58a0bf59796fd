// Package domain defines the core business entities for Sercha Ingest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Ingestion: One lifecycle instance of a provider's sync cycle
//   - Mark: A durable checkpoint for one processed page
//   - Entity: A single inventory item produced by a source
//   - Mutation: The added/removed entity sets applied to the target store
//   - BackoffTable: Wait durations indexed by consecutive failures
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
