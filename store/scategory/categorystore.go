// Package scategory implements the "category" store family: a model store template
// from which a separate child store is lazily minted for every distinct category seen.
// "multifile" and "thriftmultifile" are shorthands whose model is a file store.
package scategory

import (
	"fmt"
	"time"

	"github.com/relex/gotils/logger"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/defs"
)

// Config defines configuration for the "category" store
type Config struct {
	bconfig.Header `yaml:",inline"`
	Model          bconfig.StoreConfigHolder `yaml:"model"`
}

// NewStore creates a CategoryStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newCategoryStore(parentLogger, cfg.Model.Value, "category", category, flags, args)
}

// VerifyConfig checks configuration including the model block
func (cfg *Config) VerifyConfig() error {
	if err := cfg.Model.VerifyConfig(); err != nil {
		return fmt.Errorf(".model: %w", err)
	}
	return nil
}

// categoryStore lazily instantiates one child per category from the model config
type categoryStore struct {
	base.StoreBase
	logger   logger.Logger
	model    bconfig.StoreConfig
	flags    base.StoreFlags
	args     base.StoreArgs
	children map[string]base.Store
	opened   bool
}

func newCategoryStore(parentLogger logger.Logger, model bconfig.StoreConfig, storeType string,
	category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {

	if model == nil {
		return nil, fmt.Errorf("model store is undefined")
	}
	return &categoryStore{
		StoreBase: base.NewStoreBase(category, storeType, true),
		logger:    parentLogger.WithField(defs.LabelComponent, "CategoryStore").WithField(defs.LabelCategory, category),
		model:     model,
		flags:     flags,
		args:      args,
		children:  make(map[string]base.Store, 16),
	}, nil
}

func (store *categoryStore) Open() bool {
	store.opened = true
	return true
}

func (store *categoryStore) IsOpen() bool {
	return store.opened
}

// childFor returns the cached child for a category, minting and opening it on first use
func (store *categoryStore) childFor(category string) base.Store {
	if child, exists := store.children[category]; exists {
		return child
	}
	child, cerr := store.model.NewStore(store.logger, category,
		base.StoreFlags{MultiCategory: false}, store.args)
	if cerr != nil {
		store.SetStatus(fmt.Sprintf("failed to create store for category %s: %s", category, cerr.Error()))
		store.logger.Errorf("failed to create store for category %s: %s", category, cerr.Error())
		return nil
	}
	if !child.Open() {
		store.SetStatus(fmt.Sprintf("failed to open store for category %s: %s", category, child.Status()))
	}
	store.logger.Infof("new child store for category %s", category)
	store.children[category] = child
	return child
}

func (store *categoryStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		store.SetStatus("category store is closed")
		return false
	}

	groups := batch.SplitByCategory()
	// deterministic dispatch order keeps behavior reproducible in tests
	categories := maps.Keys(groups)
	slices.Sort(categories)

	leftover := make(base.MessageBatch, 0)
	success := true
	for _, category := range categories {
		sub := groups[category]
		child := store.childFor(category)
		if child == nil || !child.HandleMessages(&sub) {
			success = false
			leftover = append(leftover, sub...)
		}
	}
	if !success {
		*batch = leftover
	}
	return success
}

func (store *categoryStore) PeriodicCheck(now time.Time) {
	for _, child := range store.children {
		child.PeriodicCheck(now)
	}
}

func (store *categoryStore) Flush() {
	for _, child := range store.children {
		child.Flush()
	}
}

func (store *categoryStore) Close() {
	for _, child := range store.children {
		child.Close()
	}
	store.opened = false
}

func (store *categoryStore) Copy(category string) (base.Store, error) {
	return newCategoryStore(store.logger, store.model, store.Type(), category, store.flags, store.args)
}
