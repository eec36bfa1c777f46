package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
	assert.Len(t, cfg.Watchers, 4)
	assert.True(t, cfg.System.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  http_addr: ":9090"
  rate_limit: 10
watchers:
  - name: dslr
    room: dslr-monitoring
    path: /tmp/dslr.json
    interval: 1s
system:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, 10, cfg.Server.RateLimit)
	// Untouched fields keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
	require.Len(t, cfg.Watchers, 1)
	assert.Equal(t, time.Second, cfg.Watchers[0].Interval)
	assert.False(t, cfg.System.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidWatcher(t *testing.T) {
	path := writeFile(t, `
watchers:
  - name: broken
    room: dslr-monitoring
    path: /tmp/x.json
    interval: 0s
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "non-positive interval")
}

func TestLoadRejectsNamelessWatcher(t *testing.T) {
	path := writeFile(t, `
watchers:
  - room: dslr-monitoring
    path: /tmp/x.json
    interval: 1s
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "no name")
}
