package sthriftfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/forward"
	"github.com/parchment-log/parchment/store/sfile"
)

func decodeRecords(t *testing.T, data []byte) []forward.Entry {
	entries := make([]forward.Entry, 0, 4)
	for len(data) > 0 {
		require.GreaterOrEqual(t, len(data), 4)
		length := binary.BigEndian.Uint32(data[:4])
		require.GreaterOrEqual(t, len(data), int(4+length))
		var entry forward.Entry
		require.NoError(t, msgpack.Unmarshal(data[4:4+length], &entry))
		entries = append(entries, entry)
		data = data[4+length:]
	}
	return entries
}

func TestFramedRecordsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	mock.Add(12 * time.Hour)
	cfg := Config{
		Config:         sfile.Config{FilePath: dir},
		FlushFrequency: time.Hour, // background flusher stays quiet during the test
	}
	args := base.StoreArgs{
		Clock:         mock,
		MetricFactory: base.NewMetricFactory("t_stfile_rt_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{
		{Category: "foo", Message: "one"},
		{Category: "foo", Message: "two"},
	}
	assert.True(t, store.HandleMessages(&batch))
	store.Flush()

	path := filepath.Join(dir, fmt.Sprintf("foo_%s_00001", mock.Now().Format("2006-01-02")))
	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)

	entries := decodeRecords(t, data)
	assert.Equal(t, []forward.Entry{
		{Category: "foo", Message: "one"},
		{Category: "foo", Message: "two"},
	}, entries)
	store.Close()
}

func TestRotationBySizeKeepsFraming(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	mock.Add(12 * time.Hour)
	cfg := Config{
		Config: sfile.Config{
			FilePath: dir,
			MaxSize:  bconfig.ByteSize(8), // smaller than one record
		},
		FlushFrequency: time.Hour,
	}
	args := base.StoreArgs{
		Clock:         mock,
		MetricFactory: base.NewMetricFactory("t_stfile_rot_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	first := base.MessageBatch{{Category: "foo", Message: "aaaaaaaaaa"}}
	assert.True(t, store.HandleMessages(&first))
	store.Flush()
	// size limit now exceeded, the next batch goes to a new file
	second := base.MessageBatch{{Category: "foo", Message: "bbbbbbbbbb"}}
	assert.True(t, store.HandleMessages(&second))
	store.Flush()

	day := mock.Now().Format("2006-01-02")
	dataOne, _ := os.ReadFile(filepath.Join(dir, fmt.Sprintf("foo_%s_00001", day)))
	dataTwo, _ := os.ReadFile(filepath.Join(dir, fmt.Sprintf("foo_%s_00002", day)))
	assert.Equal(t, "aaaaaaaaaa", decodeRecords(t, dataOne)[0].Message)
	assert.Equal(t, "bbbbbbbbbb", decodeRecords(t, dataTwo)[0].Message)
	store.Close()
}

func TestBackgroundFlusher(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	mock.Add(12 * time.Hour)
	cfg := Config{
		Config:         sfile.Config{FilePath: dir},
		FlushFrequency: 10 * time.Millisecond,
	}
	args := base.StoreArgs{
		Clock:         mock,
		MetricFactory: base.NewMetricFactory("t_stfile_bg_", nil, nil),
	}
	store, err := cfg.NewStore(logger.Root(), "foo", base.StoreFlags{}, args)
	require.NoError(t, err)
	require.True(t, store.Open())

	batch := base.MessageBatch{{Category: "foo", Message: "buffered"}}
	assert.True(t, store.HandleMessages(&batch))

	path := filepath.Join(dir, fmt.Sprintf("foo_%s_00001", mock.Now().Format("2006-01-02")))
	assert.Eventually(t, func() bool {
		data, rerr := os.ReadFile(path)
		return rerr == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond, "background flusher should push buffered records to disk")
	store.Close()
}
