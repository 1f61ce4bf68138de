// Package sthriftfile implements the framed-record file store: the same rotation
// lifecycle as the plain file store, but records are length-prefixed and buffered
// writes are pushed to disk by a background flush worker. Not readable.
package sthriftfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/forward"
	"github.com/parchment-log/parchment/fsadapter"
	"github.com/parchment-log/parchment/store/sfile"
)

const defaultMsgBufferBytes = 64 * 1024

// thriftFileStore shares the rotation logic of FileStoreBase; the write handle and
// buffer are guarded by a lock because the background flusher runs off-worker
type thriftFileStore struct {
	sfile.FileStoreBase
	cfg         Config
	writeLock   sync.Mutex
	writer      fsadapter.FileWriter // nil when closed
	buffered    *bufio.Writer
	stopFlusher *channels.SignalAwaitable // nil when no flusher is running
	flusherDone *channels.SignalAwaitable
}

func newThriftFileStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) (base.Store, error) {

	fb, err := sfile.NewFileStoreBase(parentLogger, cfg.Config, category, "thriftfile", flags, args)
	if err != nil {
		return nil, err
	}
	if cfg.FlushFrequency <= 0 {
		cfg.FlushFrequency = defs.ThriftFileFlushFrequencyDefault
	}
	if cfg.MsgBufferSize.Bytes() == 0 {
		cfg.MsgBufferSize = bconfig.ByteSize(defaultMsgBufferBytes)
	}
	return &thriftFileStore{FileStoreBase: fb, cfg: cfg}, nil
}

func (store *thriftFileStore) Open() bool {
	store.writeLock.Lock()
	defer store.writeLock.Unlock()
	if store.writer != nil {
		return true
	}
	if err := store.EnsureDirectory(); err != nil {
		store.SetStatus(fmt.Sprintf("failed to create directory %s: %s", store.Cfg.FilePath, err.Error()))
		store.Logger.Errorf("failed to create directory: %s", err.Error())
		return false
	}
	if !store.openInternal(false, store.Clock.Now()) {
		return false
	}
	store.launchFlusher()
	return true
}

func (store *thriftFileStore) IsOpen() bool {
	store.writeLock.Lock()
	defer store.writeLock.Unlock()
	return store.writer != nil
}

// openInternal must be called with writeLock held
func (store *thriftFileStore) openInternal(incrementFilename bool, now time.Time) bool {
	suffix := store.FindNewestSuffix(now)
	if incrementFilename {
		suffix++
	}
	if suffix < 1 {
		suffix = 1
	}

	path := store.MakeFullFilename(suffix, now)
	writer, oerr := store.FS.OpenWriter(path)
	if oerr != nil {
		store.SetStatus(fmt.Sprintf("failed to open file %s: %s", path, oerr.Error()))
		store.Logger.Errorf("failed to open file %s: %s", path, oerr.Error())
		return false
	}
	size, serr := writer.Size()
	if serr != nil {
		size = 0
	}

	store.writer = writer
	store.buffered = bufio.NewWriterSize(writer, int(store.cfg.MsgBufferSize.Bytes()))
	store.CurrentSize = size
	store.CurrentSuffix = suffix
	store.CurrentFilename = path
	store.EventsWritten = 0
	store.MarkRollTime(now)
	store.ClearStatus()
	store.Logger.Infof("opened file %s size=%d", path, size)
	return true
}

func (store *thriftFileStore) HandleMessages(batch *base.MessageBatch) bool {
	store.writeLock.Lock()
	defer store.writeLock.Unlock()

	if store.writer == nil {
		store.SetStatus("thriftfile store is closed")
		return false
	}
	now := store.Clock.Now()
	maxSize := int64(store.Cfg.MaxSize.Bytes())
	if store.RotationDue(now) || (maxSize > 0 && store.CurrentSize > maxSize) {
		if !store.rotateFile(now) {
			return false
		}
	}

	written := int64(0)
	frameHeader := make([]byte, 4)
	for _, entry := range *batch {
		record, merr := msgpack.Marshal(forward.Entry{Category: entry.Category, Message: entry.Message})
		if merr != nil {
			store.SetStatus("failed to encode record: " + merr.Error())
			return false
		}
		binary.BigEndian.PutUint32(frameHeader, uint32(len(record)))
		if _, werr := store.buffered.Write(frameHeader); werr != nil {
			return store.failWrite(werr)
		}
		if _, werr := store.buffered.Write(record); werr != nil {
			return store.failWrite(werr)
		}
		written += int64(4 + len(record))
	}

	store.CountWrite(len(*batch), written)
	return true
}

func (store *thriftFileStore) failWrite(err error) bool {
	store.SetStatus(fmt.Sprintf("failed to write file %s: %s", store.CurrentFilename, err.Error()))
	store.Logger.Errorf("failed to write file %s: %s", store.CurrentFilename, err.Error())
	store.CountWriteError()
	return false
}

// rotateFile must be called with writeLock held
func (store *thriftFileStore) rotateFile(now time.Time) bool {
	store.Logger.Infof("rotating file %s events=%d bytes=%d", store.CurrentFilename, store.EventsWritten, store.CurrentSize)
	store.closeWriter()
	store.PrintStats(now)
	store.CountRotation()
	return store.openInternal(true, now)
}

func (store *thriftFileStore) PeriodicCheck(now time.Time) {
	store.writeLock.Lock()
	defer store.writeLock.Unlock()
	if store.writer == nil {
		return
	}
	maxSize := int64(store.Cfg.MaxSize.Bytes())
	if store.RotationDue(now) || (maxSize > 0 && store.CurrentSize > maxSize) {
		store.rotateFile(now)
	}
}

func (store *thriftFileStore) Flush() {
	store.writeLock.Lock()
	defer store.writeLock.Unlock()
	store.flushLocked()
}

func (store *thriftFileStore) flushLocked() {
	if store.writer == nil {
		return
	}
	if err := store.buffered.Flush(); err != nil {
		store.Logger.Warnf("error flushing file %s: %s", store.CurrentFilename, err.Error())
		return
	}
	if err := store.writer.Sync(); err != nil {
		store.Logger.Warnf("error syncing file %s: %s", store.CurrentFilename, err.Error())
	}
}

func (store *thriftFileStore) Close() {
	store.writeLock.Lock()
	stopFlusher := store.stopFlusher
	store.stopFlusher = nil
	store.closeWriter()
	store.writeLock.Unlock()

	if stopFlusher != nil {
		stopFlusher.Signal()
		store.flusherDone.WaitForever()
	}
}

// closeWriter must be called with writeLock held
func (store *thriftFileStore) closeWriter() {
	if store.writer == nil {
		return
	}
	if err := store.buffered.Flush(); err != nil {
		store.Logger.Warnf("error flushing file %s: %s", store.CurrentFilename, err.Error())
	}
	if err := store.writer.Close(); err != nil {
		store.Logger.Warnf("error closing file %s: %s", store.CurrentFilename, err.Error())
	}
	store.writer = nil
	store.buffered = nil
}

// launchFlusher must be called with writeLock held
func (store *thriftFileStore) launchFlusher() {
	if store.stopFlusher != nil {
		return
	}
	stop := channels.NewSignalAwaitable()
	done := channels.NewSignalAwaitable()
	store.stopFlusher = stop
	store.flusherDone = done

	go func() {
		defer done.Signal()
		for {
			if stop.Wait(store.cfg.FlushFrequency) {
				return
			}
			store.Flush()
		}
	}()
}

func (store *thriftFileStore) Copy(category string) (base.Store, error) {
	cfg := store.cfg
	if cfg.BaseFileName == store.Category() {
		cfg.BaseFileName = ""
	}
	return newThriftFileStore(store.Logger, cfg, category, store.Flags, store.Args)
}
