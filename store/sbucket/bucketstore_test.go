package sbucket

import (
	"fmt"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/base/btest"
)

func newTestBucketStore(t *testing.T, cfg Config, metricPrefix string) (base.Store, *btest.CaptureConfig) {
	children := btest.NewCaptureConfig()
	cfg.Bucket = bconfig.StoreConfigHolder{Value: children}
	args := base.StoreArgs{
		Clock:         clock.NewMock(),
		MetricFactory: base.NewMetricFactory(metricPrefix, nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())
	return store, children
}

func TestKeyHashBucketizing(t *testing.T) {
	cfg := Config{
		BucketType: KeyHash,
		NumBuckets: 4,
		RemoveKey:  true,
	}
	store, children := newTestBucketStore(t, cfg, "t_sbucket_hash_")

	batch := base.MessageBatch{
		{Category: "foo", Message: "7:hello"},
		{Category: "foo", Message: "k:world"},
		{Category: "foo", Message: "nodelim"},
	}
	assert.True(t, store.HandleMessages(&batch))

	bucket7 := int(xxhash.Sum64String("7")%4) + 1
	bucketK := int(xxhash.Sum64String("k")%4) + 1
	assert.Contains(t, children.Created[fmt.Sprintf("foo%03d", bucket7)].Messages(), "hello")
	assert.Contains(t, children.Created[fmt.Sprintf("foo%03d", bucketK)].Messages(), "world")
	assert.Equal(t, []string{"nodelim"}, children.Created["foo000"].Messages())
	store.Close()
}

func TestKeyModuloBucketizing(t *testing.T) {
	cfg := Config{
		BucketType: KeyModulo,
		NumBuckets: 3,
	}
	store, children := newTestBucketStore(t, cfg, "t_sbucket_mod_")

	batch := base.MessageBatch{
		{Category: "foo", Message: "0:zero"},
		{Category: "foo", Message: "4:four"},
		{Category: "foo", Message: "x:bad"}, // non-numeric key cannot be bucketized
	}
	assert.True(t, store.HandleMessages(&batch))

	assert.Equal(t, []string{"0:zero"}, children.Created["foo001"].Messages()) // 0 % 3 + 1, key kept
	assert.Equal(t, []string{"4:four"}, children.Created["foo002"].Messages()) // 4 % 3 + 1
	assert.Equal(t, []string{"x:bad"}, children.Created["foo000"].Messages())
	store.Close()
}

func TestFailedBucketReturnsLeftover(t *testing.T) {
	cfg := Config{
		BucketType: KeyModulo,
		NumBuckets: 2,
	}
	store, children := newTestBucketStore(t, cfg, "t_sbucket_fail_")

	failing := children.Created["foo001"]
	failing.Lock.Lock()
	failing.FailHandle = true
	failing.Lock.Unlock()

	batch := base.MessageBatch{
		{Category: "foo", Message: "0:lost"}, // bucket 1, rejected
		{Category: "foo", Message: "1:kept"}, // bucket 2, accepted
	}
	assert.False(t, store.HandleMessages(&batch))
	assert.Equal(t, base.MessageBatch{{Category: "foo", Message: "0:lost"}}, batch)
	assert.Equal(t, []string{"1:kept"}, children.Created["foo002"].Messages())
	store.Close()
}

func TestBucket0Override(t *testing.T) {
	children := btest.NewCaptureConfig()
	catchAll := btest.NewCaptureConfig()
	cfg := Config{
		BucketType: KeyHash,
		NumBuckets: 2,
		Bucket:     bconfig.StoreConfigHolder{Value: children},
		Bucket0:    &bconfig.StoreConfigHolder{Value: catchAll},
	}
	args := base.StoreArgs{
		Clock:         clock.NewMock(),
		MetricFactory: base.NewMetricFactory("t_sbucket_b0_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{{Category: "foo", Message: "nokey"}}
	assert.True(t, store.HandleMessages(&batch))
	assert.Equal(t, []string{"nokey"}, catchAll.Created["foo000"].Messages())
	store.Close()
}
