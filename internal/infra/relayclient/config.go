package relayclient

import (
	"os"
	"strconv"
	"time"
)

// Config 控制 relay HTTP 客户端。
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// DefaultConfig 返回默认值：单次请求 10s 超时，响应体上限 1 MiB。
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxBodyBytes: 1 << 20,
		UserAgent:    "aegis-connect/relayclient",
	}
}

// LoadConfigFromEnv 解析 RELAY_CLIENT_* 环境变量。
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	if d := readDuration("RELAY_CLIENT_TIMEOUT"); d > 0 {
		cfg.Timeout = d
	}
	if v := readInt("RELAY_CLIENT_MAX_BODY_BYTES"); v > 0 {
		cfg.MaxBodyBytes = int64(v)
	}
	if ua := os.Getenv("RELAY_CLIENT_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	return cfg
}

func readInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return v
}

func readDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
