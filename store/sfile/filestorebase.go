// Package sfile implements the file-based stores: rotating local files that can also
// serve as a replayable queue when used as a BufferStore secondary.
package sfile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/xattr"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/fsadapter"
	"github.com/parchment-log/parchment/util"
)

const (
	fileDateLayout  = "2006-01-02"
	metaLinePrefix  = "scribe_meta<!!>:" // preserved verbatim for compatibility with existing tooling
	statsFileName   = "scribe_stats"
	currentLinkName = "_current"
	xattrCategory   = "user.parchmentCategory"
)

// FileStoreBase holds the naming, rotation and suffix-discovery logic shared by all
// file-based stores. It does not write by itself; variants own their write handles
// and call into the base for rotation decisions and file names.
type FileStoreBase struct {
	base.StoreBase
	Logger logger.Logger
	Cfg    Config
	Flags  base.StoreFlags
	Args   base.StoreArgs
	Clock  clock.Clock
	FS     fsadapter.FileSystem

	// state of the currently open file
	CurrentSize     int64
	CurrentSuffix   int
	CurrentFilename string
	LastRollTime    int // hour-of-day or day-of-year of the open file, depending on the period
	EventsWritten   int64

	metrics fileMetrics
}

type fileMetrics struct {
	eventsWritten promext.RWCounter
	bytesWritten  promext.RWCounter
	rotations     promext.RWCounter
	writeErrors   promext.RWCounter
}

// NewFileStoreBase prepares the shared part of a file-based store
func NewFileStoreBase(parentLogger logger.Logger, cfg Config, category string, storeType string,
	flags base.StoreFlags, args base.StoreArgs) (FileStoreBase, error) {

	if cfg.BaseFileName == "" {
		cfg.BaseFileName = category
	}
	fs, ferr := fsadapter.New(parentLogger, cfg.FSType, fsadapter.Options{
		Endpoint: cfg.FSEndpoint,
		Bucket:   cfg.FSBucket,
		Secure:   cfg.FSSecure,
	})
	if ferr != nil {
		return FileStoreBase{}, ferr
	}

	flogger := parentLogger.WithField(defs.LabelComponent, "FileStore").WithField(defs.LabelCategory, category)
	metricFactory := args.MetricFactory.NewSubFactory("file_", []string{defs.LabelCategory}, []string{category})

	return FileStoreBase{
		StoreBase: base.NewStoreBase(category, storeType, flags.MultiCategory),
		Logger:    flogger,
		Cfg:       cfg,
		Flags:     flags,
		Args:      args,
		Clock:     args.Clock,
		FS:        fs,
		metrics: fileMetrics{
			eventsWritten: metricFactory.AddOrGetCounter("events_written_total", "Numbers of events written to files", nil, nil),
			bytesWritten:  metricFactory.AddOrGetCounter("bytes_written_total", "Bytes written to files", nil, nil),
			rotations:     metricFactory.AddOrGetCounter("rotations_total", "Numbers of file rotations", nil, nil),
			writeErrors:   metricFactory.AddOrGetCounter("write_errors_total", "Numbers of write errors", nil, nil),
		},
	}, nil
}

// EnsureDirectory creates the output directory and labels it with the category
func (fb *FileStoreBase) EnsureDirectory() error {
	if err := fb.FS.MkdirAll(fb.Cfg.FilePath); err != nil {
		return err
	}
	if fb.Cfg.FSType == "" || fb.Cfg.FSType == "std" {
		if xerr := xattr.Set(fb.Cfg.FilePath, xattrCategory, []byte(fb.Category())); xerr != nil {
			fb.Logger.Debugf("error labelling category on dir path='%s': %s", fb.Cfg.FilePath, xerr)
		}
	}
	return nil
}

// MakeBaseFilename returns the date-stamped prefix for the given day, without suffix
func (fb *FileStoreBase) MakeBaseFilename(day time.Time) string {
	return fmt.Sprintf("%s_%s", fb.Cfg.BaseFileName, day.Format(fileDateLayout))
}

// MakeFullFilename returns the full path of the file for the given day and suffix
func (fb *FileStoreBase) MakeFullFilename(suffix int, day time.Time) string {
	return filepath.Join(fb.Cfg.FilePath, fmt.Sprintf("%s_%05d", fb.MakeBaseFilename(day), suffix))
}

// MakeFullSymlink returns the path of the "_current" symlink
func (fb *FileStoreBase) MakeFullSymlink() string {
	return filepath.Join(fb.Cfg.FilePath, fb.Cfg.BaseFileName+currentLinkName)
}

// parseSuffix extracts (date, suffix) from a file name produced by MakeFullFilename,
// ok is false for unrelated files
func (fb *FileStoreBase) parseSuffix(name string) (string, int, bool) {
	prefix := fb.Cfg.BaseFileName + "_"
	if !strings.HasPrefix(name, prefix) {
		return "", 0, false
	}
	rest := name[len(prefix):]
	// rest must be "YYYY-MM-DD_NNNNN"
	if len(rest) != len(fileDateLayout)+6 || rest[len(fileDateLayout)] != '_' {
		return "", 0, false
	}
	date := rest[:len(fileDateLayout)]
	if _, derr := time.Parse(fileDateLayout, date); derr != nil {
		return "", 0, false
	}
	suffix, serr := strconv.Atoi(rest[len(fileDateLayout)+1:])
	if serr != nil {
		return "", 0, false
	}
	return date, suffix, true
}

// FindNewestSuffix returns the largest suffix of the given day's files, or 0 if none;
// suffixes start at 1 so 0 always means an unused day
func (fb *FileStoreBase) FindNewestSuffix(day time.Time) int {
	names, lerr := fb.FS.List(fb.Cfg.FilePath)
	if lerr != nil {
		fb.Logger.Warnf("error listing dir '%s': %s", fb.Cfg.FilePath, lerr.Error())
		return 0
	}
	today := day.Format(fileDateLayout)
	newest := 0
	for _, name := range names {
		date, suffix, ok := fb.parseSuffix(name)
		if ok && date == today && suffix > newest {
			newest = suffix
		}
	}
	return newest
}

// FindOldestFile returns the name of the earliest dated, lowest-suffixed file, or "" if none
func (fb *FileStoreBase) FindOldestFile() string {
	names, lerr := fb.FS.List(fb.Cfg.FilePath)
	if lerr != nil {
		fb.Logger.Warnf("error listing dir '%s': %s", fb.Cfg.FilePath, lerr.Error())
		return ""
	}
	matching := make([]string, 0, len(names))
	for _, name := range names {
		if _, _, ok := fb.parseSuffix(name); ok {
			matching = append(matching, name)
		}
	}
	if len(matching) == 0 {
		return ""
	}
	// the name layout sorts by (date, suffix) lexicographically
	sort.Strings(matching)
	return matching[0]
}

// RotationDue tells whether a time-based rotation is pending
func (fb *FileStoreBase) RotationDue(now time.Time) bool {
	switch fb.Cfg.RotatePeriod {
	case RotateHourly:
		return now.Hour() != fb.LastRollTime && now.Minute() >= fb.Cfg.RotateMinute
	case RotateDaily:
		return now.YearDay() != fb.LastRollTime && now.Hour() >= fb.Cfg.RotateHour && now.Minute() >= fb.Cfg.RotateMinute
	default:
		return false
	}
}

// MarkRollTime records the period identifier of the newly opened file
func (fb *FileStoreBase) MarkRollTime(now time.Time) {
	switch fb.Cfg.RotatePeriod {
	case RotateHourly:
		fb.LastRollTime = now.Hour()
	default:
		fb.LastRollTime = now.YearDay()
	}
}

// BytesToPad returns the padding needed so a message of the given length does not
// straddle a chunk boundary; oversized messages are written unpadded
func BytesToPad(messageLength int64, currentPosition int64, chunkSize int64) int64 {
	if chunkSize <= 0 {
		return 0
	}
	spaceLeft := chunkSize - currentPosition%chunkSize
	if messageLength <= spaceLeft || messageLength > chunkSize {
		return 0
	}
	return spaceLeft
}

// PrintStats appends one line about the finished file to the sibling stats file
func (fb *FileStoreBase) PrintStats(now time.Time) {
	statsPath := filepath.Join(fb.Cfg.FilePath, statsFileName)
	free := ""
	if freeBytes, err := util.DiskFree(fb.Cfg.FilePath); err == nil {
		free = fmt.Sprintf(" free=%d", freeBytes)
	}
	line := fmt.Sprintf("%s closed %s events=%d bytes=%d%s\n",
		now.Format(time.RFC3339), fb.CurrentFilename, fb.EventsWritten, fb.CurrentSize, free)

	writer, oerr := fb.FS.OpenWriter(statsPath)
	if oerr != nil {
		fb.Logger.Warnf("error opening stats file: %s", oerr.Error())
		return
	}
	if _, werr := writer.Write([]byte(line)); werr != nil {
		fb.Logger.Warnf("error writing stats file: %s", werr.Error())
	}
	if cerr := writer.Close(); cerr != nil {
		fb.Logger.Warnf("error closing stats file: %s", cerr.Error())
	}
}

// CountWrite updates counters after a successful write
func (fb *FileStoreBase) CountWrite(events int, bytes int64) {
	fb.CurrentSize += bytes
	fb.EventsWritten += int64(events)
	fb.metrics.eventsWritten.Add(uint64(events))
	fb.metrics.bytesWritten.Add(uint64(bytes))
}

// CountRotation updates counters after a rotation
func (fb *FileStoreBase) CountRotation() {
	fb.metrics.rotations.Inc()
}

// CountWriteError updates counters after a failed write
func (fb *FileStoreBase) CountWriteError() {
	fb.metrics.writeErrors.Inc()
}
