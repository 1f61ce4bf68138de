// Package orchestrate implements the category runtime: one worker per category owning
// its bounded submission queue and its root store, plus a shared periodic-check ticker
// driving store housekeeping.
package orchestrate

import (
	"sync"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
)

// Result is the submission outcome reported back to the wire adapter
type Result int

const (
	// ResultOK means every entry was enqueued
	ResultOK Result = iota
	// ResultTryLater means none were; a per-category queue is full
	ResultTryLater
)

// StoreFactory creates the root store for a newly seen category
type StoreFactory func(parentLogger logger.Logger, category string) (base.Store, error)

// Orchestrator distributes submitted batches to per-category workers
//
// The submission surface may be called from many listener goroutines; workers are
// created lazily under a lock and the queues provide the only hand-off.
type Orchestrator struct {
	logger      logger.Logger
	factory     StoreFactory
	clock       clock.Clock
	metrics     *base.MetricFactory
	workersLock sync.Mutex
	workers     map[string]*categoryWorker
	stopRequest *channels.SignalAwaitable
	tickerDone  *channels.SignalAwaitable
}

// NewOrchestrator creates the runtime and launches the shared periodic-check ticker
func NewOrchestrator(parentLogger logger.Logger, factory StoreFactory, clk clock.Clock,
	metricFactory *base.MetricFactory) *Orchestrator {

	ologger := parentLogger.WithField(defs.LabelComponent, "Orchestrator")
	orchestrator := &Orchestrator{
		logger:      ologger,
		factory:     factory,
		clock:       clk,
		metrics:     metricFactory,
		workers:     make(map[string]*categoryWorker, 16),
		stopRequest: channels.NewSignalAwaitable(),
		tickerDone:  channels.NewSignalAwaitable(),
	}
	go orchestrator.runTicker()
	return orchestrator
}

// Log accepts a batch of entries from the wire adapter
//
// OK means every entry was enqueued; TRY_LATER means none were. Capacity is checked
// for all target queues before anything is enqueued, so a full queue rejects the
// whole submission rather than splitting it.
func (o *Orchestrator) Log(batch base.MessageBatch) Result {
	if len(batch) == 0 {
		return ResultOK
	}

	groups := batch.SplitByCategory()
	targets := make(map[string]*categoryWorker, len(groups))
	for category := range groups {
		worker := o.workerFor(category)
		if worker == nil {
			return ResultTryLater
		}
		if len(worker.queue) >= defs.CategoryQueueMaxBatches {
			worker.metrics.rejected.Inc()
			return ResultTryLater
		}
		targets[category] = worker
	}

	for _, category := range batch.Categories() {
		targets[category].enqueue(groups[category])
	}
	return ResultOK
}

// Statuses reports the last status message of every category's root store
func (o *Orchestrator) Statuses() map[string]string {
	o.workersLock.Lock()
	defer o.workersLock.Unlock()
	statuses := make(map[string]string, len(o.workers))
	for category, worker := range o.workers {
		statuses[category] = worker.store.Status()
	}
	return statuses
}

// Shutdown stops the ticker and all workers, draining queues best-effort
func (o *Orchestrator) Shutdown() {
	o.stopRequest.Signal()
	o.tickerDone.WaitForever()

	o.workersLock.Lock()
	workers := make([]*categoryWorker, 0, len(o.workers))
	for _, worker := range o.workers {
		workers = append(workers, worker)
	}
	o.workersLock.Unlock()

	o.logger.Infof("shutting down %d category workers", len(workers))
	stopSignals := make([]channels.Awaitable, len(workers))
	for i, worker := range workers {
		close(worker.queue)
		stopSignals[i] = worker.stopped
	}
	if len(workers) > 0 && !channels.AllAwaitables(stopSignals...).Wait(defs.StoreShutdownTimeout) {
		o.logger.Error("timed out waiting for category workers to stop")
	}
	o.logger.Info("shut down all category workers")
}

// workerFor returns the category's worker, creating and launching it on first use
func (o *Orchestrator) workerFor(category string) *categoryWorker {
	o.workersLock.Lock()
	defer o.workersLock.Unlock()

	if worker, exists := o.workers[category]; exists {
		return worker
	}
	store, serr := o.factory(o.logger, category)
	if serr != nil {
		o.logger.Errorf("failed to create store for category %s: %s", category, serr.Error())
		return nil
	}
	worker := newCategoryWorker(o.logger, category, store, o.clock, o.metrics)
	o.workers[category] = worker
	go worker.run()
	return worker
}

// runTicker broadcasts periodic-check ticks to every worker; a worker busy with a
// batch skips the tick instead of queuing it
func (o *Orchestrator) runTicker() {
	defer o.tickerDone.Signal()
	ticker := o.clock.Ticker(defs.PeriodicCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			o.workersLock.Lock()
			for _, worker := range o.workers {
				select {
				case worker.tick <- now:
				default:
				}
			}
			o.workersLock.Unlock()
		case <-o.stopRequest.Channel():
			return
		}
	}
}
