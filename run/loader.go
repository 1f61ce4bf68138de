package run

import (
	"github.com/facebookgo/clock"
	"github.com/gobwas/glob"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/conn"
	"github.com/parchment-log/parchment/input/forwardlistener"
	"github.com/parchment-log/parchment/orchestrate"
	"github.com/parchment-log/parchment/store/snull"
)

// Loader loads configuration from file and prepares the environment to be launched
//
// Loader takes care of everything derived from the config file, but does not trigger
// anything automatically; orchestrator and listener are launched separately so tests
// can customize the wiring.
type Loader struct {
	Config
	MetricFactory *base.MetricFactory
	StoreArgs     base.StoreArgs
	matchers      []categoryMatcher
}

type categoryMatcher struct {
	pattern glob.Glob
	store   bconfig.StoreConfig
}

// NewLoaderFromConfigFile parses the config file and prepares store construction
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, configErr := ParseConfigFile(filepath)
	if configErr != nil {
		return nil, configErr
	}
	return NewLoader(config, base.NewMetricFactory(metricPrefix, nil, nil), clock.New())
}

// NewLoader prepares the environment from a parsed configuration
func NewLoader(config Config, metricFactory *base.MetricFactory, clk clock.Clock) (*Loader, error) {
	matchers := make([]categoryMatcher, len(config.Categories))
	for index, block := range config.Categories {
		pattern, gerr := glob.Compile(block.Category)
		if gerr != nil {
			return nil, gerr
		}
		matchers[index] = categoryMatcher{pattern: pattern, store: block.Store.Value}
	}

	pool := conn.NewPool(logger.Root(), config.CompressTransport, metricFactory)
	return &Loader{
		Config:        config,
		MetricFactory: metricFactory,
		StoreArgs: base.StoreArgs{
			Clock:         clk,
			ConnPool:      pool,
			MetricFactory: metricFactory,
		},
		matchers: matchers,
	}, nil
}

// LaunchOrchestrator launches the category runtime in background and returns it
func (loader *Loader) LaunchOrchestrator(ologger logger.Logger) *orchestrate.Orchestrator {
	return orchestrate.NewOrchestrator(ologger, loader.newStoreForCategory, loader.StoreArgs.Clock, loader.MetricFactory)
}

// LaunchListener starts the wire-protocol listener in background and returns the
// bound address and a shutdown function
func (loader *Loader) LaunchListener(orchestrator *orchestrate.Orchestrator) (string, func()) {
	stopRequest := channels.NewSignalAwaitable()
	listener, address, lerr := forwardlistener.NewListener(logger.Root(), loader.Listen, orchestrator, stopRequest)
	if lerr != nil {
		logger.Fatalf("listener: %s", lerr.Error())
	}
	listener.Launch()

	return address, func() {
		stopRequest.Signal()
		listener.Stopped().WaitForever()
	}
}

// newStoreForCategory picks the first matching category block, falling back to the
// default store; the root store is created but not opened
func (loader *Loader) newStoreForCategory(parentLogger logger.Logger, category string) (base.Store, error) {
	flags := base.StoreFlags{}
	for _, matcher := range loader.matchers {
		if matcher.pattern.Match(category) {
			return matcher.store.NewStore(parentLogger, category, flags, loader.StoreArgs)
		}
	}
	if loader.DefaultStore != nil {
		return loader.DefaultStore.Value.NewStore(parentLogger, category, flags, loader.StoreArgs)
	}
	// unmatched categories without a default are discarded
	nullConfig := &snull.Config{}
	return nullConfig.NewStore(parentLogger, category, flags, loader.StoreArgs)
}
