package run

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/util"
)

// Config defines the daemon configuration file
//
// Each category block binds a glob pattern to a store tree; the first matching block
// wins and the default store catches the rest. Suppressed categories point at a
// "null" store.
type Config struct {
	Listen            string                     `yaml:"listen"`             // forward-protocol listener address
	CompressTransport bool                       `yaml:"compress_transport"` // gzip bodies on pooled peer connections
	DefaultStore      *bconfig.StoreConfigHolder `yaml:"default_store"`      // store tree for unmatched categories
	Categories        []CategoryBlockConfig      `yaml:"categories"`
}

// CategoryBlockConfig binds one category pattern to a store tree
type CategoryBlockConfig struct {
	Category string                    `yaml:"category"` // glob pattern, e.g. "apache*"
	Store    bconfig.StoreConfigHolder `yaml:"store"`
}

// ParseConfigFile loads and verifies the configuration
func ParseConfigFile(filepath string) (Config, error) {
	var config Config
	if err := util.UnmarshalYamlFile(filepath, &config); err != nil {
		return config, fmt.Errorf("failed to load config file %s: %w", filepath, err)
	}
	if err := config.Verify(); err != nil {
		return config, fmt.Errorf("config file %s: %w", filepath, err)
	}
	return config, nil
}

// Verify checks the whole configuration tree
func (config *Config) Verify() error {
	if config.Listen == "" {
		return fmt.Errorf(".listen is unspecified")
	}
	if len(config.Categories) == 0 && config.DefaultStore == nil {
		return fmt.Errorf("no .categories and no .default_store")
	}
	for index, block := range config.Categories {
		if block.Category == "" {
			return fmt.Errorf(".categories[%d].category is unspecified", index)
		}
		if _, gerr := glob.Compile(block.Category); gerr != nil {
			return fmt.Errorf(".categories[%d].category: %w", index, gerr)
		}
		if err := config.Categories[index].Store.VerifyConfig(); err != nil {
			return fmt.Errorf(".categories[%d].store: %w", index, err)
		}
	}
	if config.DefaultStore != nil {
		if err := config.DefaultStore.VerifyConfig(); err != nil {
			return fmt.Errorf(".default_store: %w", err)
		}
	}
	return nil
}
