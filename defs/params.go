package defs

import (
	"time"
)

var (
	// PeriodicCheckInterval defines how often the shared check thread ticks every category worker
	//
	// Each tick drives store housekeeping: file rotation, reconnect attempts and buffer draining
	PeriodicCheckInterval = 1 * time.Second

	// CategoryQueueMaxBatches is the capacity of each per-category submission queue, in batches
	//
	// When the queue is full the submission surface answers TRY_LATER; this is the only
	// backpressure signal producers ever receive
	CategoryQueueMaxBatches = 64

	// CategoryQueueSendTimeout bounds enqueueing into a per-category queue after capacity
	// has been checked; reaching it at runtime should be treated as a bug
	CategoryQueueSendTimeout = 60 * time.Second

	// StoreShutdownTimeout is how long a category worker may spend draining its queue and
	// flushing its root store during shutdown
	StoreShutdownTimeout = 30 * time.Second

	// InputShutdownTimeout is how long to wait for listener connections to finish
	InputShutdownTimeout = 10 * time.Second
)

var (
	// NetworkStoreDefaultTimeout is the default per-call timeout of NetworkStore remote calls
	NetworkStoreDefaultTimeout = 5000 * time.Millisecond

	// ConnectionDialTimeout is for establishing a TCP connection to a peer daemon
	ConnectionDialTimeout = 10 * time.Second

	// ConnectionPoolMaxPerPeer caps how many connections the shared pool may mint per peer
	ConnectionPoolMaxPerPeer = 4

	// BufferRetryIntervalDefault is the average delay between primary reopen attempts of a BufferStore
	BufferRetryIntervalDefault = 300 * time.Second

	// BufferRetryIntervalRangeDefault is the jitter window around the average retry interval
	// used when a BufferStore's retry_interval_range is negative; a zero range means no jitter
	BufferRetryIntervalRangeDefault = 60 * time.Second

	// ThriftFileFlushFrequencyDefault is the default background flush cadence of ThriftFileStore
	ThriftFileFlushFrequencyDefault = 3000 * time.Millisecond
)

// For testing and experiments
const (
	TestReadTimeout = 5 * time.Second
)

// EnableTestMode turns on test mode with very short timeouts and minimal retry delay
func EnableTestMode() {
	PeriodicCheckInterval = 50 * time.Millisecond
	NetworkStoreDefaultTimeout = 1 * time.Second
	ConnectionDialTimeout = 1 * time.Second
	BufferRetryIntervalDefault = 100 * time.Millisecond
	BufferRetryIntervalRangeDefault = 20 * time.Millisecond
	ThriftFileFlushFrequencyDefault = 50 * time.Millisecond
}
