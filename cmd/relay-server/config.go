package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aegis-sign/connect/internal/gateway/relay"
)

// serverConfig 是 relay-server 的文件配置，RELAY_* 环境变量优先。
type serverConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`
	VsockPort uint32 `yaml:"vsock_port"`
	Prefix    string `yaml:"prefix"`

	TTL             time.Duration `yaml:"ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	DeliverRate     float64       `yaml:"deliver_rate"`
	DeliverBurst    int           `yaml:"deliver_burst"`
	SQLitePath      string        `yaml:"sqlite_path"`
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		HTTPAddr: ":8081",
		GRPCAddr: ":9090",
		Prefix:   "/topic",
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return serverConfig{}, fmt.Errorf("read relay config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return serverConfig{}, fmt.Errorf("parse relay config %s: %w", path, err)
		}
	}
	cfg.HTTPAddr = envOrDefault("RELAY_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = envOrDefault("RELAY_GRPC_ADDR", cfg.GRPCAddr)
	return cfg, nil
}

// relayConfig 合并文件配置与 RELAY_* 环境变量，环境变量优先。
func (c serverConfig) relayConfig() relay.Config {
	env := relay.LoadConfigFromEnv()
	cfg := relay.Config{
		TTL:             c.TTL,
		SweepInterval:   c.SweepInterval,
		MaxMessageBytes: c.MaxMessageBytes,
		DeliverRate:     c.DeliverRate,
		DeliverBurst:    c.DeliverBurst,
		SQLitePath:      c.SQLitePath,
	}
	if env.TTL > 0 {
		cfg.TTL = env.TTL
	}
	if env.SweepInterval > 0 {
		cfg.SweepInterval = env.SweepInterval
	}
	if env.MaxMessageBytes > 0 {
		cfg.MaxMessageBytes = env.MaxMessageBytes
	}
	if os.Getenv("RELAY_DELIVER_RATE") != "" || cfg.DeliverRate == 0 {
		cfg.DeliverRate = env.DeliverRate
	}
	if os.Getenv("RELAY_DELIVER_BURST") != "" || cfg.DeliverBurst == 0 {
		cfg.DeliverBurst = env.DeliverBurst
	}
	if env.SQLitePath != "" {
		cfg.SQLitePath = env.SQLitePath
	}
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
