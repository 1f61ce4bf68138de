package smulti

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/base/btest"
)

func newTestMultiStore(t *testing.T, policy ReportSuccess, metricPrefix string) (base.Store, *btest.CaptureStore, *btest.CaptureStore) {
	childA := btest.NewCaptureStore("foo")
	childB := btest.NewCaptureStore("foo")
	cfg := Config{
		ReportSuccess: policy,
		Stores: []bconfig.StoreConfigHolder{
			{Value: &fixedStoreConfig{store: childA}},
			{Value: &fixedStoreConfig{store: childB}},
		},
	}
	args := base.StoreArgs{
		Clock:         clock.NewMock(),
		MetricFactory: base.NewMetricFactory(metricPrefix, nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())
	return store, childA, childB
}

// fixedStoreConfig hands out a pre-made store, for wiring test doubles into configs
type fixedStoreConfig struct {
	store base.Store
}

func (cfg *fixedStoreConfig) GetType() string { return "fixed" }

func (cfg *fixedStoreConfig) NewStore(logger.Logger, string, base.StoreFlags, base.StoreArgs) (base.Store, error) {
	return cfg.store, nil
}

func (cfg *fixedStoreConfig) VerifyConfig() error { return nil }

func TestReportSuccessAll(t *testing.T) {
	store, childA, childB := newTestMultiStore(t, SuccessAll, "t_smulti_all_")

	childB.Lock.Lock()
	childB.FailHandle = true
	childB.Lock.Unlock()

	batch := base.MessageBatch{{Category: "foo", Message: "m"}}
	assert.False(t, store.HandleMessages(&batch))
	assert.Equal(t, base.MessageBatch{{Category: "foo", Message: "m"}}, batch)
	assert.Equal(t, []string{"m"}, childA.Messages()) // the healthy child still received it
	store.Close()
}

func TestReportSuccessAny(t *testing.T) {
	store, childA, childB := newTestMultiStore(t, SuccessAny, "t_smulti_any_")

	childB.Lock.Lock()
	childB.FailHandle = true
	childB.Lock.Unlock()

	batch := base.MessageBatch{{Category: "foo", Message: "m"}}
	assert.True(t, store.HandleMessages(&batch))
	assert.Equal(t, []string{"m"}, childA.Messages())
	store.Close()
}

func TestFanOutToAllChildren(t *testing.T) {
	store, childA, childB := newTestMultiStore(t, SuccessAll, "t_smulti_fan_")

	batch := base.MessageBatch{
		{Category: "foo", Message: "1"},
		{Category: "foo", Message: "2"},
	}
	assert.True(t, store.HandleMessages(&batch))
	assert.Equal(t, []string{"1", "2"}, childA.Messages())
	assert.Equal(t, []string{"1", "2"}, childB.Messages())
	store.Close()
}
