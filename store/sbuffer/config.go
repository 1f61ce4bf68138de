package sbuffer

import (
	"fmt"
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
)

// Config defines configuration for the "buffer" store
type Config struct {
	bconfig.Header     `yaml:",inline"`
	MaxQueueLength     int                       `yaml:"max_queue_length"`     // max in-memory entries retained when the secondary fails
	BufferSendRate     int                       `yaml:"buffer_send_rate"`     // buffer files drained per periodic check, default 1
	RetryInterval      time.Duration             `yaml:"retry_interval"`       // average delay between primary reopen attempts
	RetryIntervalRange time.Duration             `yaml:"retry_interval_range"` // jitter window around the average
	ReplayBuffer       *bool                     `yaml:"replay_buffer"`        // drain the secondary on startup, default true
	Primary            bconfig.StoreConfigHolder `yaml:"primary"`
	Secondary          bconfig.StoreConfigHolder `yaml:"secondary"`
}

// NewStore creates a BufferStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newBufferStore(parentLogger, *cfg, category, flags, args)
}

// VerifyConfig checks configuration including both child blocks
func (cfg *Config) VerifyConfig() error {
	if cfg.MaxQueueLength < 0 {
		return fmt.Errorf(".max_queue_length must not be negative")
	}
	if cfg.BufferSendRate < 0 {
		return fmt.Errorf(".buffer_send_rate must not be negative")
	}
	if err := cfg.Primary.VerifyConfig(); err != nil {
		return fmt.Errorf(".primary: %w", err)
	}
	if err := cfg.Secondary.VerifyConfig(); err != nil {
		return fmt.Errorf(".secondary: %w", err)
	}
	return nil
}
