// Package run runs the actual log shipping daemon
package run

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/defs"
)

// Run runs the daemon until stopped by signals
func Run(configFile string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, "parchment_")
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}

	orchestrator := loader.LaunchOrchestrator(logger.Root())
	address, shutdownListener := loader.LaunchListener(orchestrator)

	runLogger := logger.WithField(defs.LabelComponent, "Launcher")
	runLogger.Infof("accepting submissions on %s", address)

	// wait for shutdown signal
	{
		sigChan := make(chan os.Signal, 10)
		signal.Notify(sigChan, syscall.SIGINT)
		signal.Notify(sigChan, syscall.SIGTERM)
		s := <-sigChan
		runLogger.Infof("received %s, shutting down", s)
	}

	shutdownListener()
	orchestrator.Shutdown()
	runLogger.Info("clean exit")
}
