// Package filesystem implements an ingestion source over a local directory tree.
//
// Regular files under the configured root are emitted in slash-separated
// relative path order, one entity per file keyed by that path. The cursor is
// the last path emitted. The source also implements driven.Watcher so a
// long-running process can tick the provider as soon as files change.
package filesystem
