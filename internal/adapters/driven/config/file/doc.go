// Package file provides file-based implementations of driven port interfaces.
// These adapters read from the local filesystem.
//
// Adapters:
//   - Config: TOML process configuration (scheduler and per-provider ingestion settings)
package file
