// Package preflight checks that a store can be opened and written before
// any work starts.
//
// Checks:
//   - storage_dir: the storage directory, or the parent it will be created
//     in, is writable
//   - disk_space: enough free space where the store lives
//   - store_lock: no other process holds the store
//   - file_descriptors: the open file limit suits SQLite plus the indexes
//   - embedder: the configured provider answers with vectors of the
//     declared dimension
//
// Usage:
//
//	checker := preflight.New(preflight.WithEmbedder(e))
//	results := checker.Run(ctx, cfg.Storage.Path)
//	if preflight.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
