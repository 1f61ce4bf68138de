package scategory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/base/btest"
	"github.com/parchment-log/parchment/store/sfile"
)

func TestLazyChildCreation(t *testing.T) {
	children := btest.NewCaptureConfig()
	cfg := Config{Model: bconfig.StoreConfigHolder{Value: children}}
	args := base.StoreArgs{
		Clock:         clock.NewMock(),
		MetricFactory: base.NewMetricFactory("t_scat_lazy_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "top", base.StoreFlags{MultiCategory: true}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{
		{Category: "alpha", Message: "x"},
		{Category: "beta", Message: "y"},
		{Category: "alpha", Message: "z"},
	}
	assert.True(t, store.HandleMessages(&batch))

	require.Len(t, children.Created, 2)
	assert.Equal(t, []string{"x", "z"}, children.Created["alpha"].Messages())
	assert.Equal(t, []string{"y"}, children.Created["beta"].Messages())

	// the same children are reused on later batches
	batch = base.MessageBatch{{Category: "beta", Message: "w"}}
	assert.True(t, store.HandleMessages(&batch))
	require.Len(t, children.Created, 2)
	assert.Equal(t, []string{"y", "w"}, children.Created["beta"].Messages())
	store.Close()
}

func TestMultiFilePerCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	mock.Add(12 * time.Hour)
	cfg := MultiFileConfig{Config: sfile.Config{
		FilePath:    dir,
		AddNewlines: true,
	}}
	args := base.StoreArgs{
		Clock:         mock,
		MetricFactory: base.NewMetricFactory("t_scat_mfile_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "top", base.StoreFlags{MultiCategory: true}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{
		{Category: "alpha", Message: "x"},
		{Category: "beta", Message: "y"},
		{Category: "alpha", Message: "z"},
	}
	assert.True(t, store.HandleMessages(&batch))
	store.Flush()

	day := mock.Now().Format("2006-01-02")
	alpha, aerr := os.ReadFile(filepath.Join(dir, fmt.Sprintf("alpha_%s_00001", day)))
	require.NoError(t, aerr)
	assert.Equal(t, "x\nz\n", string(alpha))

	beta, berr := os.ReadFile(filepath.Join(dir, fmt.Sprintf("beta_%s_00001", day)))
	require.NoError(t, berr)
	assert.Equal(t, "y\n", string(beta))
	store.Close()
}

func TestFailedChildReturnsLeftover(t *testing.T) {
	children := btest.NewCaptureConfig()
	cfg := Config{Model: bconfig.StoreConfigHolder{Value: children}}
	args := base.StoreArgs{
		Clock:         clock.NewMock(),
		MetricFactory: base.NewMetricFactory("t_scat_fail_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "top", base.StoreFlags{MultiCategory: true}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	// mint the child first, then make it fail
	batch := base.MessageBatch{{Category: "alpha", Message: "first"}}
	require.True(t, store.HandleMessages(&batch))
	alpha := children.Created["alpha"]
	alpha.Lock.Lock()
	alpha.FailHandle = true
	alpha.Lock.Unlock()

	batch = base.MessageBatch{
		{Category: "alpha", Message: "lost"},
		{Category: "beta", Message: "kept"},
	}
	assert.False(t, store.HandleMessages(&batch))
	assert.Equal(t, base.MessageBatch{{Category: "alpha", Message: "lost"}}, batch)
	assert.Equal(t, []string{"kept"}, children.Created["beta"].Messages())
	store.Close()
}
