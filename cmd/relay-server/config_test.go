package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMergesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":18081"
grpc_addr: ":19090"
ttl: 5m
deliver_rate: 1
deliver_burst: 2
sqlite_path: /var/lib/relay/mailboxes.db
`), 0o600))
	t.Setenv("RELAY_GRPC_ADDR", ":29090")
	t.Setenv("RELAY_TTL", "90s")

	cfg, err := loadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":18081", cfg.HTTPAddr)
	require.Equal(t, ":29090", cfg.GRPCAddr)
	require.Equal(t, "/topic", cfg.Prefix)

	relayCfg := cfg.relayConfig()
	require.Equal(t, 90*time.Second, relayCfg.TTL)
	require.Equal(t, 1.0, relayCfg.DeliverRate)
	require.Equal(t, 2, relayCfg.DeliverBurst)
	require.Equal(t, "/var/lib/relay/mailboxes.db", relayCfg.SQLitePath)
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := loadServerConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8081", cfg.HTTPAddr)

	relayCfg := cfg.relayConfig()
	require.Equal(t, 2.0, relayCfg.DeliverRate)
	require.Equal(t, 4, relayCfg.DeliverBurst)
}
