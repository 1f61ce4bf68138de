// Package btest provides store test doubles shared by store and runtime tests.
package btest

import (
	"sync"
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
)

// CaptureStore records every accepted entry and fails on demand
type CaptureStore struct {
	base.StoreBase
	Lock        sync.Mutex
	FailOpen    bool              // Open returns false while set
	FailHandle  bool              // HandleMessages rejects everything while set
	AcceptLimit int               // accept at most N entries per call, 0 = unlimited
	Received    base.MessageBatch // all accepted entries in order
	OpenCalls   int
	Opened      bool
	Closed      bool
}

// NewCaptureStore creates a CaptureStore for the given category
func NewCaptureStore(category string) *CaptureStore {
	return &CaptureStore{
		StoreBase: base.NewStoreBase(category, "capture", false),
	}
}

// Open honors FailOpen
func (store *CaptureStore) Open() bool {
	store.Lock.Lock()
	defer store.Lock.Unlock()
	store.OpenCalls++
	if store.FailOpen {
		return false
	}
	store.Opened = true
	return true
}

// IsOpen reports the captured open state
func (store *CaptureStore) IsOpen() bool {
	store.Lock.Lock()
	defer store.Lock.Unlock()
	return store.Opened
}

// HandleMessages records entries, honoring FailHandle and AcceptLimit
func (store *CaptureStore) HandleMessages(batch *base.MessageBatch) bool {
	store.Lock.Lock()
	defer store.Lock.Unlock()
	if !store.Opened || store.FailHandle {
		store.SetStatus("capture store rejecting")
		return false
	}
	if store.AcceptLimit > 0 && len(*batch) > store.AcceptLimit {
		store.Received = append(store.Received, (*batch)[:store.AcceptLimit]...)
		*batch = (*batch)[store.AcceptLimit:]
		return false
	}
	store.Received = append(store.Received, (*batch)...)
	*batch = nil
	return true
}

// PeriodicCheck does nothing
func (store *CaptureStore) PeriodicCheck(time.Time) {
}

// Flush does nothing
func (store *CaptureStore) Flush() {
}

// Close records the call
func (store *CaptureStore) Close() {
	store.Lock.Lock()
	defer store.Lock.Unlock()
	store.Opened = false
	store.Closed = true
}

// Copy creates an independent CaptureStore
func (store *CaptureStore) Copy(category string) (base.Store, error) {
	return NewCaptureStore(category), nil
}

// Messages returns a snapshot of the received message payloads
func (store *CaptureStore) Messages() []string {
	store.Lock.Lock()
	defer store.Lock.Unlock()
	messages := make([]string, len(store.Received))
	for i, entry := range store.Received {
		messages[i] = entry.Message
	}
	return messages
}

// CaptureConfig is a StoreConfig minting CaptureStores and remembering them by category
type CaptureConfig struct {
	Lock     sync.Mutex
	FailOpen bool
	Created  map[string]*CaptureStore
}

// NewCaptureConfig creates an empty CaptureConfig
func NewCaptureConfig() *CaptureConfig {
	return &CaptureConfig{Created: make(map[string]*CaptureStore, 4)}
}

// GetType returns the type name
func (cfg *CaptureConfig) GetType() string {
	return "capture"
}

// NewStore mints a CaptureStore and remembers it under its category
//
// Repeated calls for the same category return the same store so tests can inspect
// children created inside composite stores.
func (cfg *CaptureConfig) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	cfg.Lock.Lock()
	defer cfg.Lock.Unlock()
	if existing, found := cfg.Created[category]; found {
		return existing, nil
	}
	store := NewCaptureStore(category)
	store.FailOpen = cfg.FailOpen
	cfg.Created[category] = store
	return store, nil
}

// VerifyConfig always passes
func (cfg *CaptureConfig) VerifyConfig() error {
	return nil
}
