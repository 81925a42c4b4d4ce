package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "7420", cfg.Server.Port)
	assert.True(t, cfg.Host.Enabled)
	assert.Equal(t, time.Second, cfg.Sync.Window)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgsync.yaml")
	data := []byte(`
server:
  port: "9000"
sync:
  window: 250ms
watch:
  enabled: true
  dirs:
    - /src/app
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values survive: nothing re-applies defaults on top of them.
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Window)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, []string{"/src/app"}, cfg.Watch.Dirs)
	// Keys the file does not set keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o644))

	t.Setenv("PKGSYNC_SERVER_PORT", "9001")
	t.Setenv("PKGSYNC_SYNC_WINDOW", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Sync.Window)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PKGSYNC_HOST_URL", "ws://build-agent:9900/rpc")
	t.Setenv("PKGSYNC_RATE_LIMIT_REQUESTS_PER_SECOND", "25")
	t.Setenv("PKGSYNC_LOGGING_DEVELOPMENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ws://build-agent:9900/rpc", cfg.Host.URL)
	assert.Equal(t, 25, cfg.RateLimit.RequestsPerSecond)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "7420", cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Sync.Window)
	assert.True(t, cfg.Host.Enabled)
}
