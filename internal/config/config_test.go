// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Uses temp files so every test gets an isolated config on disk.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
agent:
  binaries_dir: /opt/oxideterm/bin
  remote_dir: /tmp/.oxideterm
  call_timeout: 45s
  handshake_timeout: 15s
store:
  path: /var/lib/oxideterm/deployments.db
logging:
  level: debug
  format: json
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "/opt/oxideterm/bin", cfg.Agent.BinariesDir)
		assert.Equal(t, "/tmp/.oxideterm", cfg.Agent.RemoteDir)
		assert.Equal(t, 45*time.Second, cfg.Agent.CallTimeout)
		assert.Equal(t, 15*time.Second, cfg.Agent.HandshakeTimeout)
		assert.Equal(t, "/var/lib/oxideterm/deployments.db", cfg.Store.Path)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
agent:
  binaries_dir: /opt/oxideterm/bin
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "~/.oxideterm", cfg.Agent.RemoteDir)
		assert.Equal(t, 30*time.Second, cfg.Agent.CallTimeout)
		assert.Equal(t, 10*time.Second, cfg.Agent.HandshakeTimeout)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("env var expansion", func(t *testing.T) {
		t.Setenv("OXIDETERM_TEST_BIN_DIR", "/bundled/bin")
		path := writeConfig(t, `
agent:
  binaries_dir: ${OXIDETERM_TEST_BIN_DIR}
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/bundled/bin", cfg.Agent.BinariesDir)
	})

	t.Run("unset env var expands to empty and fails validation", func(t *testing.T) {
		path := writeConfig(t, `
agent:
  binaries_dir: ${OXIDETERM_TEST_UNSET_VAR}
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "binaries_dir")
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, `
agent:
  binaries_dir: /opt/oxideterm/bin
  call_timeout: soon
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "call_timeout")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("bad logging format", func(t *testing.T) {
		cfg := Default()
		cfg.Agent.BinariesDir = "/opt/oxideterm/bin"
		cfg.Logging.Format = "xml"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.format")
	})

	t.Run("default plus binaries dir is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Agent.BinariesDir = "/opt/oxideterm/bin"
		assert.NoError(t, cfg.Validate())
	})
}
