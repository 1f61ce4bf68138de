package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/store/sbuffer"
	"github.com/parchment-log/parchment/store/sfile"
	"github.com/parchment-log/parchment/store/snetwork"
	"github.com/parchment-log/parchment/util"

	_ "github.com/parchment-log/parchment/store" // register all store types
)

const sampleConfig = `
listen: "127.0.0.1:1463"
categories:
  - category: "apache*"
    store:
      type: buffer
      retry_interval: 30s
      retry_interval_range: 10s
      primary:
        type: network
        remote_host: peer.example.com
        remote_port: 1463
      secondary:
        type: file
        file_path: /var/spool/parchment/apache
        add_newlines: true
  - category: "suppressed"
    store:
      type: "null"
default_store:
  type: file
  file_path: /var/log/parchment
  max_size: 100MB
  rotate_period: daily
  add_newlines: true
`

func TestParseSampleConfig(t *testing.T) {
	var config Config
	require.NoError(t, util.UnmarshalYamlString(sampleConfig, &config))
	require.NoError(t, config.Verify())

	require.Len(t, config.Categories, 2)
	bufferConfig, isBuffer := config.Categories[0].Store.Value.(*sbuffer.Config)
	require.True(t, isBuffer)
	networkConfig, isNetwork := bufferConfig.Primary.Value.(*snetwork.Config)
	require.True(t, isNetwork)
	assert.Equal(t, "peer.example.com", networkConfig.RemoteHost)
	fileConfig, isFile := bufferConfig.Secondary.Value.(*sfile.Config)
	require.True(t, isFile)
	assert.Equal(t, "/var/spool/parchment/apache", fileConfig.FilePath)

	assert.Equal(t, "null", config.Categories[1].Store.Value.GetType())

	defaultFile, isDefaultFile := config.DefaultStore.Value.(*sfile.Config)
	require.True(t, isDefaultFile)
	assert.Equal(t, sfile.RotateDaily, defaultFile.RotatePeriod)
	assert.Equal(t, uint64(100*1024*1024), defaultFile.MaxSize.Bytes())
}

func TestConfigErrors(t *testing.T) {
	var config Config
	require.NoError(t, util.UnmarshalYamlString(`
listen: ":1463"
categories:
  - category: "a*"
    store:
      type: file
`, &config))
	// file store without file_path must be rejected
	assert.Error(t, config.Verify())

	var noListen Config
	require.NoError(t, util.UnmarshalYamlString(`
categories:
  - category: "a"
    store:
      type: "null"
`, &noListen))
	assert.Error(t, noListen.Verify())
}

func TestUnknownStoreTypeRejected(t *testing.T) {
	var config Config
	err := util.UnmarshalYamlString(`
listen: ":1463"
categories:
  - category: "a"
    store:
      type: teleport
`, &config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
