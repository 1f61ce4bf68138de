package snull

import (
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
)

func TestNullStoreDiscards(t *testing.T) {
	cfg := Config{}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{Readable: true}, base.StoreArgs{})
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{{Category: "foo", Message: "gone"}}
	assert.True(t, store.HandleMessages(&batch))
	assert.Empty(t, batch)

	readable := base.AsReadable(store)
	require.NotNil(t, readable)
	now := time.Now()
	replayed, ok := readable.ReadOldest(now)
	assert.True(t, ok)
	assert.Empty(t, replayed)
	assert.True(t, readable.Empty(now))

	store.Close()
	assert.False(t, store.IsOpen())
	assert.False(t, store.HandleMessages(&base.MessageBatch{{Category: "foo", Message: "m"}}))
}
