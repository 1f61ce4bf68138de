package sfile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/fsadapter"
)

// fileStore writes batches to rotating files and optionally serves as a replayable
// queue for a BufferStore. The write handle is exclusive to the owning category
// worker; rotation never runs concurrently with writes.
type fileStore struct {
	FileStoreBase
	writer fsadapter.FileWriter // nil when closed
}

func newFileStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) (base.Store, error) {

	fb, err := NewFileStoreBase(parentLogger, cfg, category, "file", flags, args)
	if err != nil {
		return nil, err
	}
	return &fileStore{FileStoreBase: fb}, nil
}

func (store *fileStore) Open() bool {
	if store.writer != nil {
		return true
	}
	if err := store.EnsureDirectory(); err != nil {
		store.SetStatus(fmt.Sprintf("failed to create directory %s: %s", store.Cfg.FilePath, err.Error()))
		store.Logger.Errorf("failed to create directory: %s", err.Error())
		return false
	}
	return store.openInternal(false, store.Clock.Now())
}

func (store *fileStore) IsOpen() bool {
	return store.writer != nil
}

// openInternal opens the write file, choosing the next suffix from the directory listing
func (store *fileStore) openInternal(incrementFilename bool, now time.Time) bool {
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
	store.CurrentSize = size
	store.CurrentSuffix = suffix
	store.CurrentFilename = path
	store.EventsWritten = 0
	store.MarkRollTime(now)
	store.ClearStatus()
	store.Logger.Infof("opened file %s size=%d", path, size)

	if store.Cfg.CreateSymlink {
		if lerr := store.FS.Symlink(filepath.Base(path), store.MakeFullSymlink()); lerr != nil {
			store.Logger.Warnf("error updating symlink: %s", lerr.Error())
		}
	}
	return true
}

// rotateFile closes the current file and opens the next one in sequence
func (store *fileStore) rotateFile(now time.Time) bool {
	store.Logger.Infof("rotating file %s events=%d bytes=%d", store.CurrentFilename, store.EventsWritten, store.CurrentSize)

	if store.Cfg.WriteMeta {
		next := filepath.Base(store.MakeFullFilename(store.nextSuffix(now), now))
		if _, werr := store.writer.Write([]byte(metaLinePrefix + next + "\n")); werr != nil {
			store.Logger.Warnf("error writing meta trailer: %s", werr.Error())
		}
	}
	store.closeWriter()
	store.PrintStats(now)
	store.CountRotation()
	return store.openInternal(true, now)
}

// nextSuffix predicts the suffix openInternal will pick after rotation
func (store *fileStore) nextSuffix(now time.Time) int {
	suffix := store.FindNewestSuffix(now) + 1
	if suffix < 1 {
		suffix = 1
	}
	return suffix
}

func (store *fileStore) HandleMessages(batch *base.MessageBatch) bool {
	if store.writer == nil {
		store.SetStatus("file store is closed")
		return false
	}
	now := store.Clock.Now()
	if store.RotationDue(now) {
		if !store.rotateFile(now) {
			return false
		}
	}

	chunkSize := int64(store.Cfg.ChunkSize.Bytes())
	maxSize := int64(store.Cfg.MaxSize.Bytes())
	buffer := &bytes.Buffer{}
	bufferedEvents := 0

	flushSegment := func() bool {
		if buffer.Len() == 0 {
			return true
		}
		if _, werr := store.writer.Write(buffer.Bytes()); werr != nil {
			store.SetStatus(fmt.Sprintf("failed to write file %s: %s", store.CurrentFilename, werr.Error()))
			store.Logger.Errorf("failed to write file %s: %s", store.CurrentFilename, werr.Error())
			store.CountWriteError()
			return false
		}
		store.CountWrite(bufferedEvents, int64(buffer.Len()))
		buffer.Reset()
		bufferedEvents = 0
		return true
	}

	for _, entry := range *batch {
		line := entry.Message
		if store.Cfg.WriteCategory {
			line = entry.Category + ":" + line
		}
		if store.Cfg.AddNewlines && !strings.HasSuffix(line, "\n") {
			line += "\n"
		}

		// a message that would exceed max_size goes to the next file
		if maxSize > 0 && store.CurrentSize+int64(buffer.Len()) > 0 &&
			store.CurrentSize+int64(buffer.Len())+int64(len(line)) > maxSize {
			if !flushSegment() {
				return false
			}
			if !store.rotateFile(now) {
				return false
			}
		}

		if pad := BytesToPad(int64(len(line)), store.CurrentSize+int64(buffer.Len()), chunkSize); pad > 0 {
			buffer.Write(make([]byte, pad))
		}
		buffer.WriteString(line)
		bufferedEvents++
	}

	return flushSegment()
}

func (store *fileStore) PeriodicCheck(now time.Time) {
	if store.writer == nil {
		return
	}
	maxSize := int64(store.Cfg.MaxSize.Bytes())
	if store.RotationDue(now) || (maxSize > 0 && store.CurrentSize > maxSize) {
		store.rotateFile(now)
	}
}

func (store *fileStore) Flush() {
	if store.writer == nil {
		return
	}
	if err := store.writer.Sync(); err != nil {
		store.Logger.Warnf("error flushing file %s: %s", store.CurrentFilename, err.Error())
	}
}

func (store *fileStore) Close() {
	store.closeWriter()
}

func (store *fileStore) closeWriter() {
	if store.writer == nil {
		return
	}
	if err := store.writer.Close(); err != nil {
		store.Logger.Warnf("error closing file %s: %s", store.CurrentFilename, err.Error())
	}
	store.writer = nil
}

func (store *fileStore) Copy(category string) (base.Store, error) {
	cfg := store.Cfg
	if cfg.BaseFileName == store.Category() {
		cfg.BaseFileName = "" // let the clone default to its own category
	}
	return newFileStore(store.Logger, cfg, category, store.Flags, store.Args)
}
