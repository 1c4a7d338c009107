package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached record: the serialized payload plus the instant it
// was stored. Staleness is judged by the Manager, not the backend, so expired
// entries stay readable for stale-fallback serving.
type Entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// Backend persists entries under pre-hashed keys. Implementations must make
// Set atomic: a reader never observes a partially written entry.
type Backend interface {
	// Get returns the entry for key. The boolean is false when no entry
	// exists; an error indicates the backend could not be read at all.
	Get(key string) (Entry, bool, error)
	// Set stores or overwrites the entry for key.
	Set(key string, e Entry) error
	// Delete removes the entry for key. Deleting a missing key is not an
	// error.
	Delete(key string) error
	// Clear removes every entry owned by this backend.
	Clear() error
}
