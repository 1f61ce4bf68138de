package base

import (
	"time"
)

// Store is a node in the per-category delivery pipeline
//
// A node is either closed or open. HandleMessages may be called in any state but fails
// if the node is closed. Returning false from HandleMessages is a retry signal, not a
// fatal error: the batch must be left holding the entries that were not accepted so the
// caller can retry or buffer them. State-corrupting failures must additionally record a
// human-readable status observable through Status.
type Store interface {

	// Category returns the category this node was created for
	Category() string

	// Type returns the store type name, e.g. "file" or "buffer"
	Type() string

	// Open attempts to acquire resources and returns success; may be called repeatedly
	Open() bool

	// IsOpen tells whether the node currently holds its resources
	IsOpen() bool

	// HandleMessages attempts to durably accept the batch
	HandleMessages(batch *MessageBatch) bool

	// PeriodicCheck performs housekeeping on a background cadence: rotation,
	// reconnection, buffer draining. It runs on the owning category worker and is
	// never concurrent with HandleMessages on the same node.
	PeriodicCheck(now time.Time)

	// Flush pushes any in-memory data toward the destination, synchronously and best-effort
	Flush()

	// Close releases resources; afterwards IsOpen reports false
	Close()

	// Copy produces a configured but unopened clone bound to a different category,
	// used by CategoryStore to mint per-category children from a model
	Copy(category string) (Store, error)

	// Status returns the latest non-empty status message; safe for concurrent use
	Status() string
}

// ReadableStore is a store that can also serve as a replayable queue, draining
// persisted entries oldest-first. A BufferStore secondary must be readable.
//
// "Oldest" identifies the least-recent rotation-unit worth of persisted entries.
// Read and delete are separate so the caller can gate deletion on successful
// forwarding; ReplaceOldest rewrites the oldest unit when only part of it was
// forwarded.
type ReadableStore interface {
	Store

	// ReadOldest reads the whole oldest unit into a batch; ok is false on read failure
	ReadOldest(now time.Time) (batch MessageBatch, ok bool)

	// ReplaceOldest atomically rewrites the oldest unit with the given batch
	ReplaceOldest(batch MessageBatch, now time.Time) bool

	// DeleteOldest removes the oldest unit
	DeleteOldest(now time.Time)

	// Empty tells whether no persisted entries remain
	Empty(now time.Time) bool
}

// AsReadable returns the read side of a store, or nil if the store does not support reading
func AsReadable(store Store) ReadableStore {
	if readable, ok := store.(ReadableStore); ok {
		return readable
	}
	return nil
}
