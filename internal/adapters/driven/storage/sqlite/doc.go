// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - IngestionStore: Ingestion lifecycle records and progress marks
//   - TargetStore: The synchronised entity inventory
//   - SchedulerStore: Scheduled tick state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Lifecycle timestamps are stored as unix milliseconds so lease and rest
// comparisons can run inside SQL.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha/data/ingest.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Lifecycle transitions are single conditional UPDATEs,
// so two processes sharing a database cannot both claim a burst.
package sqlite
