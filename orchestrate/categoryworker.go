package orchestrate

import (
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/util"
)

// categoryWorker exclusively owns one category's queue and root store
//
// All store calls, including periodic checks, happen on the worker goroutine so
// rotation and recovery are never concurrent with writes on the same node.
type categoryWorker struct {
	logger   logger.Logger
	category string
	store   base.Store
	clock   clock.Clock
	queue   chan base.MessageBatch
	tick    chan time.Time
	stopped *channels.SignalAwaitable
	metrics workerMetrics
}

type workerMetrics struct {
	enqueuedEntries promext.RWCounter
	handledEntries  promext.RWCounter
	droppedEntries  promext.RWCounter
	rejected        promext.RWCounter
	queueLength     promext.RWGauge
}

func newCategoryWorker(parentLogger logger.Logger, category string, store base.Store,
	clk clock.Clock, metricFactory *base.MetricFactory) *categoryWorker {

	wlogger := parentLogger.WithField(defs.LabelCategory, category)
	workerMetricFactory := metricFactory.NewSubFactory("category_", []string{defs.LabelCategory}, []string{category})
	return &categoryWorker{
		logger:   wlogger,
		category: category,
		store:    store,
		clock:    clk,
		queue:    make(chan base.MessageBatch, defs.CategoryQueueMaxBatches),
		tick:     make(chan time.Time, 1),
		stopped:  channels.NewSignalAwaitable(),
		metrics: workerMetrics{
			enqueuedEntries: workerMetricFactory.AddOrGetCounter("enqueued_entries_total", "Numbers of entries enqueued", nil, nil),
			handledEntries:  workerMetricFactory.AddOrGetCounter("handled_entries_total", "Numbers of entries accepted by the root store", nil, nil),
			droppedEntries:  workerMetricFactory.AddOrGetCounter("dropped_entries_total", "Numbers of entries dropped after store failures", nil, nil),
			rejected:        workerMetricFactory.AddOrGetCounter("rejected_submissions_total", "Numbers of submissions rejected with TRY_LATER", nil, nil),
			queueLength:     workerMetricFactory.AddOrGetGauge("queue_length", "Current numbers of queued batches", nil, nil),
		},
	}
}

// enqueue must only be called after a capacity check; the timeout is a backstop for
// the race between check and send and reaching it should be treated as a bug
func (worker *categoryWorker) enqueue(batch base.MessageBatch) {
	timeout := time.NewTimer(defs.CategoryQueueSendTimeout)
	defer timeout.Stop()
	select {
	case worker.queue <- batch:
		worker.metrics.enqueuedEntries.Add(uint64(len(batch)))
		worker.metrics.queueLength.Add(1)
	case <-timeout.C:
		worker.logger.Errorf("BUG: timeout enqueueing %d entries. stack=%s", len(batch), util.Stack())
		worker.metrics.droppedEntries.Add(uint64(len(batch)))
	}
}

func (worker *categoryWorker) run() {
	defer worker.stopped.Signal()
	worker.logger.Info("started")

	for {
		select {
		case batch, ok := <-worker.queue:
			if !ok {
				worker.shutDown()
				return
			}
			worker.metrics.queueLength.Sub(1)
			worker.handle(batch)
		case now := <-worker.tick:
			worker.store.PeriodicCheck(now)
		}
	}
}

// handle forwards one batch into the root store, opening it lazily on first use
//
// The worker is the only place where entries are ever dropped: a root store that
// cannot accept them has already exhausted its own retry and buffering options.
func (worker *categoryWorker) handle(batch base.MessageBatch) {
	if !worker.store.IsOpen() && !worker.store.Open() {
		worker.metrics.droppedEntries.Add(uint64(len(batch)))
		worker.logger.Warnf("dropped %d entries, store cannot open: %s", len(batch), worker.store.Status())
		return
	}
	accepted := len(batch)
	if !worker.store.HandleMessages(&batch) {
		accepted -= len(batch)
		worker.metrics.droppedEntries.Add(uint64(len(batch)))
		worker.logger.Warnf("dropped %d entries: %s", len(batch), worker.store.Status())
	}
	worker.metrics.handledEntries.Add(uint64(accepted))
}

// shutDown flushes and closes the root store; the queue was fully drained by the
// run loop before the closed channel was observed
func (worker *categoryWorker) shutDown() {
	worker.logger.Info("shutting down")
	worker.store.Flush()
	worker.store.Close()
	worker.logger.Info("stopped")
}
