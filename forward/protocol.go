// Package forward implements the wire protocol spoken between peer daemons: a framed
// msgpack Log call carrying a batch of category-tagged entries, answered by a result
// code. The same codec serves the client side (NetworkStore, connection pool) and the
// listener side.
package forward

import (
	"github.com/parchment-log/parchment/base"
)

// ResultCode is the reply to one Log call
type ResultCode int

const (
	// ResultOK means every entry was enqueued by the receiver
	ResultOK ResultCode = 0
	// ResultTryLater means none were; the sender must back off
	ResultTryLater ResultCode = 1
)

// Entry is one log entry on the wire
type Entry struct {
	Category string `msgpack:"category"`
	Message  string `msgpack:"message"`
}

// LogRequest is the body of one Log call
type LogRequest struct {
	Entries []Entry `msgpack:"entries"`
}

// LogResponse is the reply body
type LogResponse struct {
	Code ResultCode `msgpack:"code"`
}

// ToWire converts a message batch into wire entries
func ToWire(batch base.MessageBatch) []Entry {
	entries := make([]Entry, len(batch))
	for i, entry := range batch {
		entries[i] = Entry{Category: entry.Category, Message: entry.Message}
	}
	return entries
}

// FromWire converts wire entries back into a message batch
func FromWire(entries []Entry) base.MessageBatch {
	batch := make(base.MessageBatch, len(entries))
	for i, entry := range entries {
		batch[i] = base.LogEntry{Category: entry.Category, Message: entry.Message}
	}
	return batch
}
