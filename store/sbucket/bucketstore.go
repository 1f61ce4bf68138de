// Package sbucket implements the "bucket" store, hash-partitioning entries across N
// child stores by a key prefix of the message. Bucket 0 is reserved for messages that
// cannot be bucketized.
package sbucket

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/defs"
)

// BucketType selects the bucketizing function
type BucketType string

// Bucketizer types
const (
	KeyHash    BucketType = "key_hash"
	KeyModulo  BucketType = "key_modulo"
	ContextLog BucketType = "context_log"
)

// Config defines configuration for the "bucket" store
type Config struct {
	bconfig.Header `yaml:",inline"`
	BucketType     BucketType                 `yaml:"bucket_type"`
	Delimiter      string                     `yaml:"delimiter"`  // key separator, default ":"
	RemoveKey      bool                       `yaml:"remove_key"` // forward the message without its key
	NumBuckets     int                        `yaml:"num_buckets"`
	Bucket         bconfig.StoreConfigHolder  `yaml:"bucket"`  // template for buckets 1..N
	Bucket0        *bconfig.StoreConfigHolder `yaml:"bucket0"` // optional override for the catch-all bucket
}

// NewStore creates a BucketStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newBucketStore(parentLogger, *cfg, category, flags, args)
}

// VerifyConfig checks configuration including the bucket template
func (cfg *Config) VerifyConfig() error {
	switch cfg.BucketType {
	case KeyHash, KeyModulo, ContextLog:
	default:
		return fmt.Errorf(".bucket_type: unsupported '%s'", cfg.BucketType)
	}
	if cfg.NumBuckets <= 0 {
		return fmt.Errorf(".num_buckets must be positive")
	}
	if len(cfg.Delimiter) > 1 {
		return fmt.Errorf(".delimiter must be a single character")
	}
	if err := cfg.Bucket.VerifyConfig(); err != nil {
		return fmt.Errorf(".bucket: %w", err)
	}
	if cfg.Bucket0 != nil {
		if err := cfg.Bucket0.VerifyConfig(); err != nil {
			return fmt.Errorf(".bucket0: %w", err)
		}
	}
	return nil
}

type bucketStore struct {
	base.StoreBase
	logger    logger.Logger
	cfg       Config
	flags     base.StoreFlags
	args      base.StoreArgs
	delimiter byte
	buckets   []base.Store // index 0..NumBuckets
	opened    bool
}

func newBucketStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) (base.Store, error) {

	blogger := parentLogger.WithField(defs.LabelComponent, "BucketStore").WithField(defs.LabelCategory, category)
	delimiter := byte(':')
	if cfg.Delimiter != "" {
		delimiter = cfg.Delimiter[0]
	}

	buckets := make([]base.Store, cfg.NumBuckets+1)
	for number := range buckets {
		template := cfg.Bucket.Value
		if number == 0 && cfg.Bucket0 != nil {
			template = cfg.Bucket0.Value
		}
		child, cerr := template.NewStore(blogger, fmt.Sprintf("%s%03d", category, number), flags, args)
		if cerr != nil {
			return nil, fmt.Errorf("bucket %d: %w", number, cerr)
		}
		buckets[number] = child
	}

	return &bucketStore{
		StoreBase: base.NewStoreBase(category, "bucket", flags.MultiCategory),
		logger:    blogger,
		cfg:       cfg,
		flags:     flags,
		args:      args,
		delimiter: delimiter,
		buckets:   buckets,
	}, nil
}

func (store *bucketStore) Open() bool {
	success := true
	for number, bucket := range store.buckets {
		if !bucket.Open() {
			store.logger.Warnf("failed to open bucket %d", number)
			success = false
		}
	}
	store.opened = success
	return success
}

func (store *bucketStore) IsOpen() bool {
	return store.opened
}

// bucketize maps a message to a bucket number; 0 means the message has no usable key
func (store *bucketStore) bucketize(message string) (bucket int, rest string) {
	sep := strings.IndexByte(message, store.delimiter)
	if sep < 0 {
		return 0, message
	}
	key := message[:sep]
	rest = message[sep+1:]
	n := uint64(store.cfg.NumBuckets)

	switch store.cfg.BucketType {
	case KeyHash:
		return int(xxhash.Sum64String(key)%n) + 1, rest
	case KeyModulo:
		value, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return 0, message
		}
		return int(value%n) + 1, rest
	default: // ContextLog: a decimal id at a fixed position at the start of the key
		end := 0
		for end < len(key) && key[end] >= '0' && key[end] <= '9' {
			end++
		}
		if end == 0 {
			return 0, message
		}
		value, err := strconv.ParseUint(key[:end], 10, 64)
		if err != nil {
			return 0, message
		}
		return int(value%n) + 1, rest
	}
}

func (store *bucketStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		store.SetStatus("bucket store is closed")
		return false
	}

	// group per bucket, preserving order inside each sub-batch
	groups := make(map[int]base.MessageBatch, len(store.buckets))
	for _, entry := range *batch {
		number, rest := store.bucketize(entry.Message)
		forwarded := entry
		if store.cfg.RemoveKey && number != 0 {
			forwarded.Message = rest
		}
		groups[number] = append(groups[number], forwarded)
	}

	leftover := make(base.MessageBatch, 0)
	success := true
	for number, group := range groups {
		sub := group
		if !store.buckets[number].HandleMessages(&sub) {
			success = false
			leftover = append(leftover, sub...)
		}
	}
	if !success {
		store.SetStatus("one or more buckets failed to accept messages")
		*batch = leftover
	}
	return success
}

func (store *bucketStore) PeriodicCheck(now time.Time) {
	for _, bucket := range store.buckets {
		bucket.PeriodicCheck(now)
	}
}

func (store *bucketStore) Flush() {
	for _, bucket := range store.buckets {
		bucket.Flush()
	}
}

func (store *bucketStore) Close() {
	for _, bucket := range store.buckets {
		bucket.Close()
	}
	store.opened = false
}

func (store *bucketStore) Copy(category string) (base.Store, error) {
	return newBucketStore(store.logger, store.cfg, category, store.flags, store.args)
}
