// Package snull implements the "null" store: accepts and discards everything.
// Useful as a placeholder for suppressed categories. Readable, but always empty.
package snull

import (
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
)

// Config defines configuration for the "null" store
type Config struct {
	bconfig.Header `yaml:",inline"`
}

// NewStore creates a NullStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return &nullStore{
		StoreBase: base.NewStoreBase(category, "null", flags.MultiCategory),
		flags:     flags,
		args:      args,
		cfg:       *cfg,
		logger:    parentLogger,
	}, nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	return nil
}

type nullStore struct {
	base.StoreBase
	logger logger.Logger
	cfg    Config
	flags  base.StoreFlags
	args   base.StoreArgs
	opened bool
}

func (store *nullStore) Open() bool {
	store.opened = true
	return true
}

func (store *nullStore) IsOpen() bool {
	return store.opened
}

func (store *nullStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		return false
	}
	*batch = nil
	return true
}

func (store *nullStore) PeriodicCheck(time.Time) {
}

func (store *nullStore) Flush() {
}

func (store *nullStore) Close() {
	store.opened = false
}

func (store *nullStore) Copy(category string) (base.Store, error) {
	return store.cfg.NewStore(store.logger, category, store.flags, store.args)
}

func (store *nullStore) ReadOldest(time.Time) (base.MessageBatch, bool) {
	return nil, true
}

func (store *nullStore) ReplaceOldest(base.MessageBatch, time.Time) bool {
	return true
}

func (store *nullStore) DeleteOldest(time.Time) {
}

func (store *nullStore) Empty(time.Time) bool {
	return true
}
