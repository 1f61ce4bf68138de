package sfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"

	"github.com/parchment-log/parchment/base"
)

// The read side turns a file store into a replayable queue: the oldest file is one
// rotation-unit worth of persisted entries. Reads flush the writer first so they
// always observe complete data. Deleting the file currently being written closes
// it and reopens one suffix past the newest remaining file; replacing it closes it,
// rewrites it and reopens that same file for appending.

func (store *fileStore) ReadOldest(now time.Time) (base.MessageBatch, bool) {
	oldest := store.FindOldestFile()
	if oldest == "" {
		return nil, true
	}
	if store.isCurrentFile(oldest) {
		store.Flush()
	}

	data, rerr := store.FS.ReadAll(filepath.Join(store.Cfg.FilePath, oldest))
	if rerr != nil {
		store.SetStatus("failed to read oldest file " + oldest + ": " + rerr.Error())
		store.Logger.Errorf("failed to read oldest file %s: %s", oldest, rerr.Error())
		return nil, false
	}
	return store.parseFileContents(data), true
}

func (store *fileStore) DeleteOldest(now time.Time) {
	oldest := store.FindOldestFile()
	if oldest == "" {
		return
	}
	current := store.isCurrentFile(oldest)
	if current {
		store.closeWriter()
	}
	if err := store.FS.Remove(filepath.Join(store.Cfg.FilePath, oldest)); err != nil {
		store.Logger.Warnf("error deleting oldest file %s: %s", oldest, err.Error())
	}
	if current {
		store.openInternal(true, now)
	}
}

func (store *fileStore) ReplaceOldest(batch base.MessageBatch, now time.Time) bool {
	oldest := store.FindOldestFile()
	if oldest == "" {
		return false
	}
	current := store.isCurrentFile(oldest)
	if current {
		store.closeWriter()
	}

	buffer := &bytes.Buffer{}
	for _, entry := range batch {
		line := entry.Message
		if store.Cfg.WriteCategory {
			line = entry.Category + ":" + line
		}
		if store.Cfg.AddNewlines && !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		buffer.WriteString(line)
	}

	path := filepath.Join(store.Cfg.FilePath, oldest)
	success := true
	if err := store.FS.WriteAll(path, buffer.Bytes()); err != nil {
		store.SetStatus("failed to replace oldest file " + oldest + ": " + err.Error())
		store.Logger.Errorf("failed to replace oldest file %s: %s", oldest, err.Error())
		success = false
	}
	if current {
		store.openInternal(false, now)
	}
	return success
}

func (store *fileStore) Empty(now time.Time) bool {
	names, lerr := store.FS.List(store.Cfg.FilePath)
	if lerr != nil {
		return true
	}
	if store.writer != nil {
		store.Flush()
	}
	for _, name := range names {
		if _, _, ok := store.parseSuffix(name); !ok {
			continue
		}
		size, serr := store.FS.FileSize(filepath.Join(store.Cfg.FilePath, name))
		if serr == nil && size > 0 {
			return false
		}
	}
	return true
}

func (store *fileStore) isCurrentFile(name string) bool {
	return store.writer != nil && filepath.Base(store.CurrentFilename) == name
}

// parseFileContents recovers entries from the line-oriented file format: optional
// null padding at chunk boundaries, optional "category:" prefixes and the meta trailer
func (store *fileStore) parseFileContents(data []byte) base.MessageBatch {
	batch := make(base.MessageBatch, 0, 100)
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimLeft(line, "\x00")
		if len(line) == 0 {
			continue
		}
		text := string(line)
		if strings.HasPrefix(text, metaLinePrefix) {
			continue
		}
		category := store.Category()
		message := text
		if store.Cfg.WriteCategory {
			if sep := strings.IndexByte(text, ':'); sep >= 0 {
				category = text[:sep]
				message = text[sep+1:]
			}
		}
		batch = append(batch, base.LogEntry{Category: category, Message: message})
	}
	return batch
}
