package cmd

import (
	"context"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/run"
	"github.com/parchment-log/parchment/util"
)

type runCommandState struct {
	Config      string `help:"Configuration file path"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information"`
	TestMode    bool   `help:"Use test mode config: fast retry and short timeout"`
}

var runCmd = runCommandState{
	Config:      "config.yml",
	MetricsAddr: ":9377",
	TestMode:    false,
}

func (cmd *runCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	msrv := util.LaunchMetricsListener(cmd.MetricsAddr)

	run.Run(cmd.Config)

	if err := msrv.Shutdown(context.Background()); err != nil {
		logger.Errorf("error shutting down metrics listener: %v", err)
	}
}

type checkCommandState struct {
	Config string `help:"Configuration file path"`
}

var checkCmd = checkCommandState{
	Config: "config.yml",
}

func (cmd *checkCommandState) run(args []string) {
	if _, err := run.ParseConfigFile(cmd.Config); err != nil {
		logger.Fatal(err)
	}
	logger.Infof("config ok: %s", cmd.Config)
}
