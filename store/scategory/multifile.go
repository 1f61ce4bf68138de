package scategory

import (
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/store/sfile"
	"github.com/parchment-log/parchment/store/sthriftfile"
)

// MultiFileConfig defines the "multifile" store: a category store whose model is a
// plain file store, so every category gets its own file under one directory
type MultiFileConfig struct {
	sfile.Config `yaml:",inline"`
}

// NewStore creates the category store with a file model
func (cfg *MultiFileConfig) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	model := cfg.Config
	model.BaseFileName = "" // children default to their own category names
	return newCategoryStore(parentLogger, &model, "multifile", category, flags, args)
}

// VerifyConfig checks configuration
func (cfg *MultiFileConfig) VerifyConfig() error {
	return cfg.Config.VerifyConfig()
}

// ThriftMultiFileConfig defines the "thriftmultifile" store: a category store whose
// model is a framed-record file store
type ThriftMultiFileConfig struct {
	sthriftfile.Config `yaml:",inline"`
}

// NewStore creates the category store with a framed-record file model
func (cfg *ThriftMultiFileConfig) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	model := cfg.Config
	model.BaseFileName = ""
	return newCategoryStore(parentLogger, &model, "thriftmultifile", category, flags, args)
}

// VerifyConfig checks configuration
func (cfg *ThriftMultiFileConfig) VerifyConfig() error {
	return cfg.Config.VerifyConfig()
}
