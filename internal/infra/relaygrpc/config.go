package relaygrpc

import (
	"os"
	"time"
)

// Config 控制到 relay gRPC 服务的连接。
type Config struct {
	// Endpoint 支持 host:port、unix:///path 与 vsock://cid:port。
	Endpoint         string
	DialTimeout      time.Duration
	CallTimeout      time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// ServiceName 用于 service config 与健康检查。
	ServiceName string
}

// DefaultConfig 返回默认连接参数。
func DefaultConfig() Config {
	return Config{
		Endpoint:         "127.0.0.1:9090",
		DialTimeout:      2 * time.Second,
		CallTimeout:      5 * time.Second,
		KeepaliveTime:    30 * time.Second,
		KeepaliveTimeout: 10 * time.Second,
		ServiceName:      "relay.v1.Relay",
	}
}

// LoadConfigFromEnv 解析 RELAY_GRPC_* 环境变量。
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("RELAY_GRPC_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if d := readDuration("RELAY_GRPC_DIAL_TIMEOUT"); d > 0 {
		cfg.DialTimeout = d
	}
	if d := readDuration("RELAY_GRPC_CALL_TIMEOUT"); d > 0 {
		cfg.CallTimeout = d
	}
	if d := readDuration("RELAY_GRPC_KEEPALIVE_TIME"); d > 0 {
		cfg.KeepaliveTime = d
	}
	if d := readDuration("RELAY_GRPC_KEEPALIVE_TIMEOUT"); d > 0 {
		cfg.KeepaliveTimeout = d
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
