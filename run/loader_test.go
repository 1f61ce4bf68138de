package run

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/forward"
)

// TestEndToEndSubmission drives the full path: forward client -> listener ->
// orchestrator -> file store, then verifies the written file.
func TestEndToEndSubmission(t *testing.T) {
	dir := t.TempDir()
	configText := `
listen: "127.0.0.1:0"
categories:
  - category: "logs*"
    store:
      type: file
      file_path: ` + dir + `
      add_newlines: true
default_store:
  type: "null"
`
	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(configText), 0644))

	config, perr := ParseConfigFile(configPath)
	require.NoError(t, perr)

	loader, lerr := NewLoader(config, base.NewMetricFactory("t_run_e2e_", nil, nil), clock.New())
	require.NoError(t, lerr)

	orchestrator := loader.LaunchOrchestrator(logger.Root())
	address, shutdownListener := loader.LaunchListener(orchestrator)

	client, derr := forward.Dial(logger.Root(), address, defs.TestReadTimeout, false)
	require.NoError(t, derr)

	result, serr := client.Log(base.MessageBatch{
		{Category: "logs.app", Message: "hello"},
		{Category: "logs.app", Message: "world"},
		{Category: "other", Message: "discarded"},
	})
	require.NoError(t, serr)
	assert.Equal(t, base.SendOK, result)

	client.Close()
	shutdownListener()
	orchestrator.Shutdown()

	day := time.Now().Format("2006-01-02")
	content, rerr := os.ReadFile(filepath.Join(dir, "logs.app_"+day+"_00001"))
	require.NoError(t, rerr)
	assert.Equal(t, "hello\nworld\n", string(content))
}
