package provider

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const defaultBatchConcurrency = 16

// Config 控制 Subprovider。
type Config struct {
	// Network 是期望的链 id（0x 十六进制，如 "0x4"）；为空时不校验 MNID 网络。
	Network string
	// BatchConcurrency 限制单个批量请求内并行处理的条目数。
	BatchConcurrency int
	Logger           *slog.Logger
	Metrics          *Metrics
}

func (c Config) normalize() Config {
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = defaultBatchConcurrency
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Network = strings.TrimSpace(c.Network)
	return c
}

// LoadConfigFromEnv 读取 CONNECT_NETWORK 与 CONNECT_BATCH_CONCURRENCY。
func LoadConfigFromEnv() Config {
	cfg := Config{Network: os.Getenv("CONNECT_NETWORK")}
	if v, err := strconv.Atoi(os.Getenv("CONNECT_BATCH_CONCURRENCY")); err == nil && v > 0 {
		cfg.BatchConcurrency = v
	}
	return cfg.normalize()
}
