package cache

import "fmt"

// FetchError reports that an upstream collaborator failed and no stale copy
// was available to serve. Callers must handle it; it is the only failure the
// orchestrator lets surface.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError reports a backend read/write problem. Reads that fail are
// treated as misses; writes that fail are logged but never fail the call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
