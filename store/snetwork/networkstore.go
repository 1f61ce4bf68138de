// Package snetwork implements the "network" store, forwarding batches to a remote
// peer daemon speaking the forward protocol, either through the process-wide
// connection pool or over a dedicated connection.
package snetwork

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/forward"
)

// Config defines configuration for the "network" store
type Config struct {
	bconfig.Header    `yaml:",inline"`
	RemoteHost        string        `yaml:"remote_host"`
	RemotePort        int           `yaml:"remote_port"`
	Timeout           time.Duration `yaml:"timeout"`            // per-call timeout, default 5s
	UseConnPool       *bool         `yaml:"use_conn_pool"`      // default true
	ServiceDiscovery  string        `yaml:"service_discovery"`  // named resolver, "" = direct host:port
	Service           string        `yaml:"service"`            // service name for the resolver
	CompressTransport bool          `yaml:"compress_transport"` // gzip bodies on dedicated connections
}

// NewStore creates a NetworkStore
func (cfg *Config) NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error) {
	return newNetworkStore(parentLogger, *cfg, category, flags, args), nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.ServiceDiscovery != "" {
		if cfg.Service == "" {
			return fmt.Errorf(".service is required with .service_discovery")
		}
		return nil
	}
	if cfg.RemoteHost == "" {
		return fmt.Errorf(".remote_host is unspecified")
	}
	if cfg.RemotePort <= 0 || cfg.RemotePort > 65535 {
		return fmt.Errorf(".remote_port out of range: %d", cfg.RemotePort)
	}
	return nil
}

type networkStore struct {
	base.StoreBase
	logger   logger.Logger
	cfg      Config
	flags    base.StoreFlags
	args     base.StoreArgs
	pool     base.ConnPool
	peerAddr string          // resolved at Open
	client   *forward.Client // dedicated connection when the pool is not used
	opened   bool
	metrics  networkMetrics
}

type networkMetrics struct {
	sentEntries promext.RWCounter
	tryLaters   promext.RWCounter
	sendErrors  promext.RWCounter
}

func newNetworkStore(parentLogger logger.Logger, cfg Config, category string, flags base.StoreFlags,
	args base.StoreArgs) base.Store {

	if cfg.Timeout <= 0 {
		cfg.Timeout = defs.NetworkStoreDefaultTimeout
	}
	nlogger := parentLogger.WithField(defs.LabelComponent, "NetworkStore").WithField(defs.LabelCategory, category)
	metricFactory := args.MetricFactory.NewSubFactory("network_", []string{defs.LabelCategory}, []string{category})

	var pool base.ConnPool
	if cfg.UseConnPool == nil || *cfg.UseConnPool {
		pool = args.ConnPool
	}
	return &networkStore{
		StoreBase: base.NewStoreBase(category, "network", flags.MultiCategory),
		logger:    nlogger,
		cfg:       cfg,
		flags:     flags,
		args:      args,
		pool:      pool,
		metrics: networkMetrics{
			sentEntries: metricFactory.AddOrGetCounter("sent_entries_total", "Numbers of entries accepted by the peer", nil, nil),
			tryLaters:   metricFactory.AddOrGetCounter("try_later_total", "Numbers of TRY_LATER replies from the peer", nil, nil),
			sendErrors:  metricFactory.AddOrGetCounter("send_errors_total", "Numbers of transport errors toward the peer", nil, nil),
		},
	}
}

// Open resolves the peer and establishes the connection; failure leaves the node closed
func (store *networkStore) Open() bool {
	if store.opened {
		return true
	}

	addr, rerr := store.resolve()
	if rerr != nil {
		store.SetStatus("failed to resolve peer: " + rerr.Error())
		store.logger.Warnf("failed to resolve peer: %s", rerr.Error())
		return false
	}
	store.peerAddr = addr

	if store.pool != nil {
		if !store.pool.Open(addr) {
			store.SetStatus("failed to connect peer " + addr)
			return false
		}
	} else {
		client, derr := forward.Dial(store.logger, addr, store.cfg.Timeout, store.cfg.CompressTransport)
		if derr != nil {
			store.SetStatus("failed to connect peer " + addr + ": " + derr.Error())
			store.logger.Warnf("failed to connect peer %s: %s", addr, derr.Error())
			return false
		}
		store.client = client
	}
	store.opened = true
	store.ClearStatus()
	return true
}

func (store *networkStore) IsOpen() bool {
	return store.opened
}

func (store *networkStore) HandleMessages(batch *base.MessageBatch) bool {
	if !store.opened {
		store.SetStatus("network store is closed")
		return false
	}

	var result base.SendResult
	if store.pool != nil {
		result = store.pool.Send(store.peerAddr, *batch)
	} else {
		var err error
		result, err = store.client.Log(*batch)
		if err != nil {
			store.logger.Warnf("error sending to peer %s: %s", store.peerAddr, err.Error())
		}
	}

	switch result {
	case base.SendOK:
		store.metrics.sentEntries.Add(uint64(len(*batch)))
		return true
	case base.SendTryLater:
		store.metrics.tryLaters.Inc()
		store.SetStatus("peer " + store.peerAddr + " asked to try later")
		return false
	default:
		store.metrics.sendErrors.Inc()
		store.SetStatus("transport error toward peer " + store.peerAddr)
		store.Close() // transport errors render the connection unusable
		return false
	}
}

func (store *networkStore) PeriodicCheck(time.Time) {
	// reconnection is driven by Open attempts from the wrapping BufferStore
}

func (store *networkStore) Flush() {
}

func (store *networkStore) Close() {
	if !store.opened {
		return
	}
	if store.pool != nil {
		store.pool.Release(store.peerAddr)
	} else if store.client != nil {
		store.client.Close()
		store.client = nil
	}
	store.opened = false
}

func (store *networkStore) Copy(category string) (base.Store, error) {
	return newNetworkStore(store.logger, store.cfg, category, store.flags, store.args), nil
}

func (store *networkStore) resolve() (string, error) {
	if store.cfg.ServiceDiscovery != "" {
		return forward.ResolveService(store.cfg.ServiceDiscovery, store.cfg.Service)
	}
	return net.JoinHostPort(store.cfg.RemoteHost, strconv.Itoa(store.cfg.RemotePort)), nil
}
