package connect

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aegis-sign/connect/internal/gateway/push"
)

// DefaultAppURL 是未配置 app_url 时移动端使用的回跳地址。
const DefaultAppURL = "http://127.0.0.1:8545/fragment"

// Config 是 connect 客户端的文件配置，环境变量优先于文件。
type Config struct {
	// Network 是期望的链 id，例如 "0x4"。
	Network string `yaml:"network"`
	// RelayBase 是 relay 邮箱前缀，例如 "https://relay.example/topic/"。
	RelayBase    string        `yaml:"relay_base"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Mobile       bool          `yaml:"mobile"`
	Stream       bool          `yaml:"stream"`
	// AppURL 是移动端签名完成后回跳的地址，签名端以 GET AppURL?name=value 回传结果。
	AppURL string `yaml:"app_url"`

	Scheme   string `yaml:"scheme"`
	Label    string `yaml:"label"`
	ClientID string `yaml:"client_id"`

	// RPCURL 非空时未拦截的方法转发到该节点。
	RPCURL           string `yaml:"rpc_url"`
	BatchConcurrency int    `yaml:"batch_concurrency"`

	Push PushConfig `yaml:"push"`

	Logger *slog.Logger `yaml:"-"`
}

// PushConfig 控制推送快速通道。
type PushConfig struct {
	Enabled   bool           `yaml:"enabled"`
	RelayURL  string         `yaml:"relay_url"`
	RateLimit float64        `yaml:"rate_limit"`
	RateBurst int            `yaml:"rate_burst"`
	Workers   int            `yaml:"workers"`
	FCM       push.FCMConfig `yaml:"fcm"`
}

// LoadConfig 读取 YAML 文件（path 为空时跳过）并应用 CONNECT_* 覆盖。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read connect config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse connect config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Network, "CONNECT_NETWORK")
	overrideString(&c.RelayBase, "CONNECT_RELAY_BASE")
	overrideString(&c.RPCURL, "CONNECT_RPC_URL")
	overrideString(&c.Scheme, "CONNECT_URI_SCHEME")
	overrideString(&c.Push.RelayURL, "CONNECT_PUSH_RELAY_URL")
	overrideString(&c.AppURL, "CONNECT_APP_URL")
	if value := os.Getenv("CONNECT_POLL_INTERVAL"); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			c.PollInterval = d
		}
	}
	overrideBool(&c.Mobile, "CONNECT_MOBILE")
	overrideBool(&c.Stream, "CONNECT_STREAM")
	overrideBool(&c.Push.Enabled, "CONNECT_PUSH_ENABLED")
	if v, err := strconv.Atoi(os.Getenv("CONNECT_BATCH_CONCURRENCY")); err == nil && v > 0 {
		c.BatchConcurrency = v
	}
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mobile && cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	return cfg
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func overrideBool(dst *bool, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if v, err := strconv.ParseBool(value); err == nil {
		*dst = v
	}
}
