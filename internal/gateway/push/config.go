package push

import (
	"log/slog"
	"os"
	"strconv"
)

// Config 控制 Dispatcher 行为。
type Config struct {
	MaxQueue  int
	Workers   int
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
	Metrics   *Metrics
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// LoadConfigFromEnv 解析 PUSH_* 环境变量。
func LoadConfigFromEnv() Config {
	cfg := Config{}
	if v, err := strconv.Atoi(os.Getenv("PUSH_MAX_QUEUE")); err == nil {
		cfg.MaxQueue = v
	}
	if v, err := strconv.Atoi(os.Getenv("PUSH_WORKERS")); err == nil {
		cfg.Workers = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PUSH_RATE_LIMIT"), 64); err == nil {
		cfg.RateLimit = v
	}
	if v, err := strconv.Atoi(os.Getenv("PUSH_RATE_BURST")); err == nil {
		cfg.RateBurst = v
	}
	return cfg
}
