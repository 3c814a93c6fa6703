package relay

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config 控制邮箱服务。
type Config struct {
	// TTL 是邮箱保留时间，过期后读取视为不存在。
	TTL time.Duration
	// SweepInterval 是后台清理周期。
	SweepInterval time.Duration
	// MaxMessageBytes 限制单条消息大小。
	MaxMessageBytes int64
	// DeliverRate 与 DeliverBurst 限制每个 topic id 的写入频率，<=0 表示不限速。
	DeliverRate  float64
	DeliverBurst int
	// SQLitePath 非空时使用 SQLite 存储。
	SQLitePath string
	Logger     *slog.Logger
	Metrics    *Metrics
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 64 << 10
	}
	if cfg.DeliverRate > 0 && cfg.DeliverBurst <= 0 {
		cfg.DeliverBurst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// LoadConfigFromEnv 解析 RELAY_* 环境变量。
func LoadConfigFromEnv() Config {
	cfg := Config{
		DeliverRate:  2,
		DeliverBurst: 4,
		SQLitePath:   os.Getenv("RELAY_SQLITE_PATH"),
	}
	if d := readDuration("RELAY_TTL"); d > 0 {
		cfg.TTL = d
	}
	if d := readDuration("RELAY_SWEEP_INTERVAL"); d > 0 {
		cfg.SweepInterval = d
	}
	if v := readInt("RELAY_MAX_MESSAGE_BYTES"); v > 0 {
		cfg.MaxMessageBytes = int64(v)
	}
	if value := os.Getenv("RELAY_DELIVER_RATE"); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			cfg.DeliverRate = v
		}
	}
	if v := readInt("RELAY_DELIVER_BURST"); v > 0 {
		cfg.DeliverBurst = v
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
