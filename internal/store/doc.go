// Package store persists the project catalog as a single JSON document with
// crash-safe writes.
//
// # File set
//
// Three sibling files share the catalog path:
//
//   - the canonical file, mutated only by an atomic rename;
//   - a .bak copy of the previous good canonical file, refreshed
//     opportunistically before each rename;
//   - a .tmp file, the only direct write target.
//
// A crash mid-write can therefore never leave a truncated canonical file:
// either the rename happened or the previous canonical content survives.
//
// # Load recovery
//
// Open reads the canonical file; on a read or parse failure other than
// "file absent" it falls back to the backup, and if that also fails it
// resets to an empty document and flushes immediately. Startup never fails
// on catalog corruption.
//
// # Write coalescing
//
// Mutations update the in-memory document synchronously and signal a single
// writer goroutine, which flushes once per quiet debounce window (500 ms by
// default). A burst of mutations produces one disk write. Flush forces an
// immediate durable write and surfaces its error to the caller; an error on
// the debounced path is only logged.
//
// The document is guarded by one mutex; every flush serializes the current
// in-memory state, so the debounced writer and a forced Flush may interleave
// freely.
package store
