package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.Moniker = "gov-node-0"
	cfg.App.ForwardURL = "http://127.0.0.1:9000/actions"
	cfg.App.ForwardRetries = 3
	cfg.App.PollInterval = 500 * time.Millisecond

	require.NoError(t, WriteConfigFile(ConfigFile(home), cfg))

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, "gov-node-0", loaded.Moniker)
	assert.Equal(t, home, loaded.RootDir)
	assert.Equal(t, home, loaded.App.Home)
	assert.Equal(t, "http://127.0.0.1:9000/actions", loaded.App.ForwardURL)
	assert.Equal(t, uint(3), loaded.App.ForwardRetries)
	assert.Equal(t, 500*time.Millisecond, loaded.App.PollInterval)
	assert.Equal(t, cfg.Consensus.TimeoutCommit, loaded.Consensus.TimeoutCommit)
	assert.Equal(t, filepath.Join(home, "indexer.db"), loaded.App.IndexerPath())
	assert.Equal(t, filepath.Join(home, "data"), loaded.App.DataDir())
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, WriteConfigFile(ConfigFile(home), DefaultConfig(home)))
	t.Setenv("HACGOV_APP_SERVICE_ADDR", "0.0.0.0:9999")

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", loaded.App.ServiceAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nowhere"))
	assert.Error(t, err)
}

func TestResolveHome(t *testing.T) {
	t.Setenv("HACGOV_HOME", "")
	h, err := ResolveHome("/srv/gov")
	require.NoError(t, err)
	assert.Equal(t, "/srv/gov", h)

	t.Setenv("HACGOV_HOME", "/opt/gov")
	h, err = ResolveHome("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/gov", h)

	t.Setenv("HACGOV_HOME", "")
	h, err = ResolveHome("")
	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".hacgov"), h)
}
