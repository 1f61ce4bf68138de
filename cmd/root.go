package cmd

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/relex/gotils/logger"
)

// rootCommandState holds the profiling flags shared by all commands; profiles are
// started before the command runs and written out after it returns
type rootCommandState struct {
	CPUProfile string `name:"cpuprofile" help:"Write CPU profile to file."`
	MemProfile string `name:"memprofile" help:"Write memory profile to file."`
	Trace      string `help:"Write execution trace to file."`

	openProfiles []func()
}

var rootCmd rootCommandState

func (cmd *rootCommandState) preRun() {
	if cmd.CPUProfile != "" {
		file := cmd.createProfileFile(cmd.CPUProfile, "CPU profile")
		if err := pprof.StartCPUProfile(file); err != nil {
			logger.Fatalf("failed to start CPU profiling: %s", err.Error())
		}
		cmd.openProfiles = append(cmd.openProfiles, func() {
			pprof.StopCPUProfile()
			file.Close()
		})
	}

	if cmd.MemProfile != "" {
		file := cmd.createProfileFile(cmd.MemProfile, "memory profile")
		cmd.openProfiles = append(cmd.openProfiles, func() {
			runtime.GC()
			if err := pprof.WriteHeapProfile(file); err != nil {
				logger.Errorf("failed to write memory profile: %s", err.Error())
			}
			file.Close()
		})
	}

	if cmd.Trace != "" {
		file := cmd.createProfileFile(cmd.Trace, "execution trace")
		if err := trace.Start(file); err != nil {
			logger.Fatalf("failed to start tracing: %s", err.Error())
		}
		cmd.openProfiles = append(cmd.openProfiles, func() {
			trace.Stop()
			file.Close()
		})
	}
}

func (cmd *rootCommandState) postRun() {
	for _, finish := range cmd.openProfiles {
		finish()
	}
	cmd.openProfiles = nil
}

func (cmd *rootCommandState) createProfileFile(path string, kind string) *os.File {
	file, err := os.Create(path)
	if err != nil {
		logger.Fatalf("failed to create %s %s: %s", kind, path, err.Error())
	}
	logger.Infof("writing %s to %s", kind, path)
	return file
}
