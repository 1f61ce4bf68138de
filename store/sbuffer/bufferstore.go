// Package sbuffer implements the "buffer" store: a primary destination backed by a
// readable secondary that absorbs entries while the primary is unavailable and is
// drained back in order once it recovers.
package sbuffer

import (
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/util"
)

// bufferState is the recovery state machine position
type bufferState int

const (
	// stateStreaming: connected to primary and sending directly
	stateStreaming bufferState = iota
	// stateDisconnected: primary down, writing to secondary
	stateDisconnected
	// stateSendingBuffer: primary back up, draining secondary in order
	stateSendingBuffer
)

func (s bufferState) String() string {
	switch s {
	case stateStreaming:
		return "STREAMING"
	case stateDisconnected:
		return "DISCONNECTED"
	default:
		return "SENDING_BUFFER"
	}
}

type bufferStore struct {
	base.StoreBase
	logger    logger.Logger
	cfg       Config
	flags     base.StoreFlags
	args      base.StoreArgs
	clock     clock.Clock
	primary   base.Store
	secondary base.ReadableStore

	state           bufferState
	lastWriteTime   time.Time
	lastOpenAttempt time.Time
	retryInterval   time.Duration
	overflow        base.MessageBatch // entries retained in memory after secondary failures
	opened          bool

	metrics bufferMetrics
}

type bufferMetrics struct {
	bufferedEntries promext.RWCounter
	droppedEntries  promext.RWCounter
	stateChanges    *promext.RWCounterVec
}

func newBufferStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) (base.Store, error) {

	blogger := parentLogger.WithField(defs.LabelComponent, "BufferStore").WithField(defs.LabelCategory, category)

	if cfg.BufferSendRate == 0 {
		cfg.BufferSendRate = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defs.BufferRetryIntervalDefault
	}
	if cfg.RetryIntervalRange < 0 {
		cfg.RetryIntervalRange = defs.BufferRetryIntervalRangeDefault
	}

	primary, perr := cfg.Primary.Value.NewStore(blogger, category,
		base.StoreFlags{MultiCategory: flags.MultiCategory}, args)
	if perr != nil {
		return nil, fmt.Errorf("primary: %w", perr)
	}
	secondaryStore, serr := cfg.Secondary.Value.NewStore(blogger, category,
		base.StoreFlags{Readable: true, MultiCategory: flags.MultiCategory}, args)
	if serr != nil {
		return nil, fmt.Errorf("secondary: %w", serr)
	}
	secondary := base.AsReadable(secondaryStore)
	if secondary == nil {
		return nil, fmt.Errorf("secondary store type '%s' is not readable", cfg.Secondary.Value.GetType())
	}

	metricFactory := args.MetricFactory.NewSubFactory("buffer_", []string{defs.LabelCategory}, []string{category})
	return &bufferStore{
		StoreBase: base.NewStoreBase(category, "buffer", flags.MultiCategory),
		logger:    blogger,
		cfg:       cfg,
		flags:     flags,
		args:      args,
		clock:     args.Clock,
		primary:   primary,
		secondary: secondary,
		state:     stateDisconnected,
		metrics: bufferMetrics{
			bufferedEntries: metricFactory.AddOrGetCounter("buffered_entries_total", "Numbers of entries routed to the secondary store", nil, nil),
			droppedEntries:  metricFactory.AddOrGetCounter("dropped_entries_total", "Numbers of entries dropped after secondary failures", nil, nil),
			stateChanges:    metricFactory.AddOrGetCounterVec("state_changes_total", "Numbers of state machine transitions", []string{"state"}, nil),
		},
	}, nil
}

// Open attempts the primary; failure starts the node DISCONNECTED with the secondary open
func (store *bufferStore) Open() bool {
	now := store.clock.Now()
	if store.primary.Open() {
		replay := store.cfg.ReplayBuffer == nil || *store.cfg.ReplayBuffer
		if replay && !store.secondary.Empty(now) {
			store.secondary.Open()
			store.changeState(stateSendingBuffer, now)
		} else {
			store.changeState(stateStreaming, now)
		}
	} else {
		store.secondary.Open()
		store.changeState(stateDisconnected, now)
	}
	store.opened = store.primary.IsOpen() || store.secondary.IsOpen()
	return store.opened
}

func (store *bufferStore) IsOpen() bool {
	return store.opened
}

func (store *bufferStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		store.SetStatus("buffer store is closed")
		return false
	}
	now := store.clock.Now()
	store.lastWriteTime = now

	if store.state == stateStreaming {
		if store.primary.HandleMessages(batch) {
			return true
		}
		// the same batch is routed to the secondary within this call
		store.changeState(stateDisconnected, now)
		store.secondary.Open()
	}

	// DISCONNECTED and SENDING_BUFFER submissions go to the secondary; direct
	// primary writes would reorder against entries already persisted there
	return store.writeSecondary(batch)
}

// writeSecondary routes a batch to the secondary, retrying retained entries first
func (store *bufferStore) writeSecondary(batch *base.MessageBatch) bool {
	if len(store.overflow) > 0 {
		pending := store.overflow
		if !store.secondary.HandleMessages(&pending) {
			store.overflow = pending
			return store.retainOverflow(batch)
		}
		store.overflow = nil
	}

	count := len(*batch)
	if store.secondary.HandleMessages(batch) {
		store.metrics.bufferedEntries.Add(uint64(count))
		return true
	}
	return store.retainOverflow(batch)
}

// retainOverflow keeps what fits under max_queue_length in memory; the rest stays in
// the batch for the caller, which is where the drop decision belongs
func (store *bufferStore) retainOverflow(batch *base.MessageBatch) bool {
	room := store.cfg.MaxQueueLength - len(store.overflow)
	if room <= 0 {
		return false
	}
	if room > len(*batch) {
		room = len(*batch)
	}
	store.overflow = append(store.overflow, (*batch)[:room]...)
	*batch = (*batch)[room:]
	if len(*batch) > 0 {
		return false
	}
	return true
}

func (store *bufferStore) PeriodicCheck(now time.Time) {
	store.primary.PeriodicCheck(now)
	store.secondary.PeriodicCheck(now)

	switch store.state {
	case stateDisconnected:
		store.checkReconnect(now)
	case stateSendingBuffer:
		store.drainBuffer(now)
	case stateStreaming:
	}
}

// checkReconnect attempts to reopen the primary on the jittered retry cadence
func (store *bufferStore) checkReconnect(now time.Time) {
	if now.Sub(store.lastOpenAttempt) < store.retryInterval {
		return
	}
	store.lastOpenAttempt = now
	// re-sample on every attempt so many buffers never align their retries
	store.retryInterval = util.JitteredInterval(store.cfg.RetryInterval, store.cfg.RetryIntervalRange)

	if !store.primary.Open() {
		return
	}
	if store.secondary.Empty(now) && len(store.overflow) == 0 {
		store.changeState(stateStreaming, now)
	} else {
		store.changeState(stateSendingBuffer, now)
	}
}

// drainBuffer forwards up to buffer_send_rate oldest units from the secondary to the
// primary, in order, deleting each unit only after it was accepted
func (store *bufferStore) drainBuffer(now time.Time) {
	if len(store.overflow) > 0 {
		pending := store.overflow
		if store.secondary.HandleMessages(&pending) {
			store.overflow = nil
		} else {
			store.overflow = pending
		}
	}

	for i := 0; i < store.cfg.BufferSendRate; i++ {
		unit, ok := store.secondary.ReadOldest(now)
		if !ok {
			return // read failure already recorded by the secondary
		}
		if len(unit) == 0 {
			if store.secondary.Empty(now) {
				break
			}
			store.secondary.DeleteOldest(now)
			continue
		}

		remaining := unit
		if store.primary.HandleMessages(&remaining) {
			store.secondary.DeleteOldest(now)
			continue
		}
		if len(remaining) < len(unit) {
			// partially accepted: keep only the un-forwarded tail and stop for this tick
			store.secondary.ReplaceOldest(remaining, now)
			return
		}
		store.changeState(stateDisconnected, now)
		return
	}

	if store.secondary.Empty(now) && len(store.overflow) == 0 {
		store.changeState(stateStreaming, now)
	}
}

func (store *bufferStore) changeState(newState bufferState, now time.Time) {
	if store.opened && newState == store.state {
		return
	}
	store.logger.Infof("state %s -> %s", store.state, newState)
	store.metrics.stateChanges.WithLabelValues(newState.String()).Inc()
	switch newState {
	case stateDisconnected:
		store.lastOpenAttempt = now
		store.retryInterval = util.JitteredInterval(store.cfg.RetryInterval, store.cfg.RetryIntervalRange)
	case stateStreaming, stateSendingBuffer:
	}
	store.state = newState
}

func (store *bufferStore) Flush() {
	if store.state == stateStreaming {
		store.primary.Flush()
	}
	store.secondary.Flush()
}

func (store *bufferStore) Close() {
	if !store.opened {
		return
	}
	if len(store.overflow) > 0 {
		pending := store.overflow
		if store.secondary.HandleMessages(&pending) {
			store.overflow = nil
		} else {
			store.metrics.droppedEntries.Add(uint64(len(pending)))
			store.logger.Errorf("dropping %d retained entries at close", len(pending))
		}
	}
	store.primary.Close()
	store.secondary.Close()
	store.opened = false
}

func (store *bufferStore) Copy(category string) (base.Store, error) {
	return newBufferStore(store.logger, store.cfg, category, store.flags, store.args)
}

// Status reports the primary's failure first as it is the interesting one
func (store *bufferStore) Status() string {
	if primaryStatus := store.primary.Status(); primaryStatus != "" {
		return primaryStatus
	}
	return store.StoreBase.Status()
}
