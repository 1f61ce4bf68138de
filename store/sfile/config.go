package sfile

import (
	"fmt"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
)

// RotatePeriod selects time-based file rotation
type RotatePeriod string

// Rotation periods
const (
	RotateNever  RotatePeriod = "never"
	RotateHourly RotatePeriod = "hourly"
	RotateDaily  RotatePeriod = "daily"
)

// Config defines configuration for the "file" store and is embedded by file-based variants
type Config struct {
	bconfig.Header `yaml:",inline"`
	FilePath       string            `yaml:"file_path"`      // directory holding output files
	BaseFileName   string            `yaml:"base_filename"`  // prefix; defaults to the category name
	MaxSize        bconfig.ByteSize  `yaml:"max_size"`       // rotate when exceeded, 0 = no size limit
	RotatePeriod   RotatePeriod      `yaml:"rotate_period"`  // never|hourly|daily
	RotateHour     int               `yaml:"rotate_hour"`    // boundary within a daily period
	RotateMinute   int               `yaml:"rotate_minute"`  // boundary within the period
	ChunkSize      bconfig.ByteSize  `yaml:"chunk_size"`     // chunk alignment, 0 = off
	WriteMeta      bool              `yaml:"write_meta"`     // on rotate, write a trailer naming the next file
	WriteCategory  bool              `yaml:"write_category"` // prepend "category:" to each written line
	AddNewlines    bool              `yaml:"add_newlines"`   // append '\n' to each message if missing
	CreateSymlink  bool              `yaml:"create_symlink"` // maintain the "_current" symlink
	FSType         string            `yaml:"fs_type"`        // file backend: std (default) or s3
	FSEndpoint     string            `yaml:"fs_endpoint"`    // object store endpoint for fs_type s3
	FSBucket       string            `yaml:"fs_bucket"`      // object store bucket for fs_type s3
	FSSecure       bool              `yaml:"fs_secure"`      // TLS toward the object store
}

// NewStore creates a FileStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newFileStore(parentLogger, *cfg, category, flags, args)
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if len(cfg.FilePath) == 0 {
		return fmt.Errorf(".file_path is unspecified")
	}
	switch cfg.RotatePeriod {
	case "", RotateNever, RotateHourly, RotateDaily:
	default:
		return fmt.Errorf(".rotate_period: unsupported '%s'", cfg.RotatePeriod)
	}
	if cfg.RotateHour < 0 || cfg.RotateHour > 23 {
		return fmt.Errorf(".rotate_hour out of range: %d", cfg.RotateHour)
	}
	if cfg.RotateMinute < 0 || cfg.RotateMinute > 59 {
		return fmt.Errorf(".rotate_minute out of range: %d", cfg.RotateMinute)
	}
	if cfg.FSType == "s3" && (cfg.FSEndpoint == "" || cfg.FSBucket == "") {
		return fmt.Errorf(".fs_endpoint and .fs_bucket are required for fs_type 's3'")
	}
	return nil
}
