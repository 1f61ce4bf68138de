// Package smulti implements the "multi" store, fanning every entry out to all
// configured children with a configurable success policy.
package smulti

import (
	"fmt"
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/defs"
)

// ReportSuccess selects how child results combine into the overall result
type ReportSuccess string

// Success policies
const (
	SuccessAny ReportSuccess = "any" // at least one child accepted
	SuccessAll ReportSuccess = "all" // every child accepted
)

// Config defines configuration for the "multi" store
type Config struct {
	bconfig.Header `yaml:",inline"`
	ReportSuccess  ReportSuccess               `yaml:"report_success"` // default "all"
	Stores         []bconfig.StoreConfigHolder `yaml:"stores"`
}

// NewStore creates a MultiStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newMultiStore(parentLogger, *cfg, category, flags, args)
}

// VerifyConfig checks configuration including all child blocks
func (cfg *Config) VerifyConfig() error {
	switch cfg.ReportSuccess {
	case "", SuccessAny, SuccessAll:
	default:
		return fmt.Errorf(".report_success: unsupported '%s'", cfg.ReportSuccess)
	}
	if len(cfg.Stores) == 0 {
		return fmt.Errorf(".stores is empty")
	}
	for index := range cfg.Stores {
		if err := cfg.Stores[index].VerifyConfig(); err != nil {
			return fmt.Errorf(".stores[%d]: %w", index, err)
		}
	}
	return nil
}

type multiStore struct {
	base.StoreBase
	logger     logger.Logger
	cfg        Config
	flags      base.StoreFlags
	args       base.StoreArgs
	children   []base.Store
	requireAll bool
	opened     bool
}

func newMultiStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) (base.Store, error) {

	mlogger := parentLogger.WithField(defs.LabelComponent, "MultiStore").WithField(defs.LabelCategory, category)
	children := make([]base.Store, len(cfg.Stores))
	for index, holder := range cfg.Stores {
		child, cerr := holder.Value.NewStore(mlogger, category, flags, args)
		if cerr != nil {
			return nil, fmt.Errorf("stores[%d]: %w", index, cerr)
		}
		children[index] = child
	}
	return &multiStore{
		StoreBase:  base.NewStoreBase(category, "multi", flags.MultiCategory),
		logger:     mlogger,
		cfg:        cfg,
		flags:      flags,
		args:       args,
		children:   children,
		requireAll: cfg.ReportSuccess != SuccessAny,
	}, nil
}

func (store *multiStore) Open() bool {
	success := true
	for index, child := range store.children {
		if !child.Open() {
			store.logger.Warnf("failed to open child %d (%s)", index, child.Type())
			success = false
		}
	}
	store.opened = success
	return success
}

func (store *multiStore) IsOpen() bool {
	return store.opened
}

func (store *multiStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		store.SetStatus("multi store is closed")
		return false
	}

	anyAccepted := false
	allAccepted := true
	for _, child := range store.children {
		// every child gets its own copy so a failing one cannot consume another's view
		sub := append(base.MessageBatch(nil), (*batch)...)
		if child.HandleMessages(&sub) {
			anyAccepted = true
		} else {
			allAccepted = false
		}
	}

	if store.requireAll {
		if !allAccepted {
			store.SetStatus("one or more children failed to accept messages")
		}
		// a failed child leaves the whole batch unprocessed for the caller
		return allAccepted
	}
	if !anyAccepted {
		store.SetStatus("no child accepted messages")
	}
	return anyAccepted
}

func (store *multiStore) PeriodicCheck(now time.Time) {
	for _, child := range store.children {
		child.PeriodicCheck(now)
	}
}

func (store *multiStore) Flush() {
	for _, child := range store.children {
		child.Flush()
	}
}

func (store *multiStore) Close() {
	for _, child := range store.children {
		child.Close()
	}
	store.opened = false
}

func (store *multiStore) Copy(category string) (base.Store, error) {
	return newMultiStore(store.logger, store.cfg, category, store.flags, store.args)
}
