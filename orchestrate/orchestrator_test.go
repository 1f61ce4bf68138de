package orchestrate

import (
	"fmt"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/btest"
	"github.com/parchment-log/parchment/defs"
)

func captureFactory(config *btest.CaptureConfig) StoreFactory {
	return func(parentLogger logger.Logger, category string) (base.Store, error) {
		return config.NewStore(parentLogger, category, base.StoreFlags{}, base.StoreArgs{})
	}
}

func TestSubmissionPerCategory(t *testing.T) {
	stores := btest.NewCaptureConfig()
	orchestrator := NewOrchestrator(logger.Root(), captureFactory(stores),
		clock.New(), base.NewMetricFactory("t_orch_submit_", nil, nil))

	batch := base.MessageBatch{
		{Category: "alpha", Message: "1"},
		{Category: "beta", Message: "b1"},
		{Category: "alpha", Message: "2"},
	}
	assert.Equal(t, ResultOK, orchestrator.Log(batch))

	// a second submission to the same categories reuses the workers
	assert.Equal(t, ResultOK, orchestrator.Log(base.MessageBatch{{Category: "alpha", Message: "3"}}))

	orchestrator.Shutdown()

	assert.Equal(t, []string{"1", "2", "3"}, stores.Created["alpha"].Messages())
	assert.Equal(t, []string{"b1"}, stores.Created["beta"].Messages())
	assert.True(t, stores.Created["alpha"].Closed)
}

func TestIntraCategoryOrdering(t *testing.T) {
	stores := btest.NewCaptureConfig()
	orchestrator := NewOrchestrator(logger.Root(), captureFactory(stores),
		clock.New(), base.NewMetricFactory("t_orch_order_", nil, nil))

	expected := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		message := fmt.Sprintf("m%03d", i)
		expected = append(expected, message)
		require.Equal(t, ResultOK, orchestrator.Log(base.MessageBatch{{Category: "seq", Message: message}}))
	}
	orchestrator.Shutdown()
	assert.Equal(t, expected, stores.Created["seq"].Messages())
}

// blockingStore stalls HandleMessages until released, to fill the worker queue
type blockingStore struct {
	*btest.CaptureStore
	release chan struct{}
}

func (store *blockingStore) HandleMessages(batch *base.MessageBatch) bool {
	<-store.release
	return store.CaptureStore.HandleMessages(batch)
}

func TestQueueOverflowAnswersTryLater(t *testing.T) {
	oldMax := defs.CategoryQueueMaxBatches
	defs.CategoryQueueMaxBatches = 2
	defer func() { defs.CategoryQueueMaxBatches = oldMax }()

	blocked := &blockingStore{
		CaptureStore: btest.NewCaptureStore("slow"),
		release:      make(chan struct{}),
	}
	factory := func(parentLogger logger.Logger, category string) (base.Store, error) {
		return blocked, nil
	}
	orchestrator := NewOrchestrator(logger.Root(), factory,
		clock.New(), base.NewMetricFactory("t_orch_overflow_", nil, nil))

	// the first batch occupies the worker, the next two fill the queue
	require.Equal(t, ResultOK, orchestrator.Log(base.MessageBatch{{Category: "slow", Message: "w"}}))
	assert.Eventually(t, func() bool {
		return ResultOK != orchestrator.Log(base.MessageBatch{{Category: "slow", Message: "q"}})
	}, time.Second, time.Millisecond, "queue should fill up and reject")

	close(blocked.release)
	orchestrator.Shutdown()
}

func TestStatuses(t *testing.T) {
	stores := btest.NewCaptureConfig()
	orchestrator := NewOrchestrator(logger.Root(), captureFactory(stores),
		clock.New(), base.NewMetricFactory("t_orch_status_", nil, nil))

	require.Equal(t, ResultOK, orchestrator.Log(base.MessageBatch{{Category: "alpha", Message: "m"}}))
	assert.Eventually(t, func() bool {
		store, found := stores.Created["alpha"]
		if !found {
			return false
		}
		return len(store.Messages()) == 1
	}, time.Second, time.Millisecond)

	statuses := orchestrator.Statuses()
	_, found := statuses["alpha"]
	assert.True(t, found)
	orchestrator.Shutdown()
}
