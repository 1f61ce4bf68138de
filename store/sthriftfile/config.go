package sthriftfile

import (
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/store/sfile"
)

// Config defines configuration for the "thriftfile" store: rotating files of
// length-prefixed records with a background flush worker
type Config struct {
	sfile.Config   `yaml:",inline"`
	FlushFrequency time.Duration    `yaml:"flush_frequency"` // background flush cadence, 0 = default
	MsgBufferSize  bconfig.ByteSize `yaml:"msg_buffer_size"` // in-memory write buffer size, 0 = default
}

// NewStore creates a ThriftFileStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newThriftFileStore(parentLogger, *cfg, category, flags, args)
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	return cfg.Config.VerifyConfig()
}
