package connect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: "0x4"
relay_base: https://relay.example/topic/
poll_interval: 500ms
label: Demo
push:
  enabled: true
  rate_limit: 2
  fcm:
    project_id: demo-project
`), 0o600))

	t.Setenv("CONNECT_RELAY_BASE", "http://localhost:8081/topic/")
	t.Setenv("CONNECT_STREAM", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0x4", cfg.Network)
	require.Equal(t, "http://localhost:8081/topic/", cfg.RelayBase)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.True(t, cfg.Stream)
	require.Equal(t, "Demo", cfg.Label)
	require.True(t, cfg.Push.Enabled)
	require.Equal(t, 2.0, cfg.Push.RateLimit)
	require.Equal(t, "demo-project", cfg.Push.FCM.ProjectID)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("CONNECT_NETWORK", "0x1")
	t.Setenv("CONNECT_MOBILE", "not-a-bool")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "0x1", cfg.Network)
	require.False(t, cfg.Mobile)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
