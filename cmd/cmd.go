// Package cmd provides the list of commands
package cmd

import (
	"github.com/relex/gotils/config"

	_ "github.com/parchment-log/parchment/store" // register all store types
)

func init() {
	config.AddParentCmdWithArgs("", "parchment ships category-tagged logs to files and peer daemons", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Run the daemon", &runCmd, runCmd.run)
	config.AddCmdWithArgs("check-config ...", "Verify a configuration file and exit", &checkCmd, checkCmd.run)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
