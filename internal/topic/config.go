package topic

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRelayBase      = "http://localhost:8081/topic/"
	defaultPollInterval   = 2 * time.Second
	defaultCleanupTimeout = 5 * time.Second
)

// Config 控制 Factory 的投递策略与 relay 参数，构造时确定，不随调用变化。
type Config struct {
	// RelayBase 是 relay 邮箱的前缀，topic URL = RelayBase + id。
	RelayBase string
	// PollInterval 是桌面端轮询间隔。
	PollInterval time.Duration
	// IsOnMobile 为 true 时使用 hash-watch 策略。
	IsOnMobile bool
	// Stream 仅桌面端生效：用 websocket 订阅替代轮询。
	Stream bool
	// CleanupTimeout 限制成功后 DELETE 清理请求的耗时。
	CleanupTimeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.RelayBase == "" {
		cfg.RelayBase = defaultRelayBase
	}
	if !strings.HasSuffix(cfg.RelayBase, "/") {
		cfg.RelayBase += "/"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaultCleanupTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// LoadConfigFromEnv 读取 CONNECT_* 环境变量覆盖默认值。
func LoadConfigFromEnv() Config {
	cfg := Config{RelayBase: defaultRelayBase, PollInterval: defaultPollInterval, CleanupTimeout: defaultCleanupTimeout}
	if v := strings.TrimSpace(os.Getenv("CONNECT_RELAY_BASE")); v != "" {
		cfg.RelayBase = v
	}
	if d := readDuration("CONNECT_POLL_INTERVAL"); d > 0 {
		cfg.PollInterval = d
	}
	if d := readDuration("CONNECT_CLEANUP_TIMEOUT"); d > 0 {
		cfg.CleanupTimeout = d
	}
	if v, ok := readBool("CONNECT_MOBILE"); ok {
		cfg.IsOnMobile = v
	}
	if v, ok := readBool("CONNECT_STREAM"); ok {
		cfg.Stream = v
	}
	return cfg
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

func readBool(key string) (bool, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return false, false
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return v, true
}
