// Package relaygrpc 建立到 relay gRPC 服务的连接，支持 TCP、unix socket 与 vsock。
package relaygrpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Dial 创建连接并用健康检查确认服务可用。
func Dial(ctx context.Context, cfg Config) (*grpc.ClientConn, error) {
	def := DefaultConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	params := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: true,
	}
	serviceConfig := fmt.Sprintf(`{"methodConfig":[{"name":[{"service":"%s"}],"timeout":"%s"}]}`, cfg.ServiceName, cfg.CallTimeout.String())
	conn, err := grpc.NewClient("passthrough:///"+cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(params),
		grpc.WithDefaultServiceConfig(serviceConfig),
		grpc.WithContextDialer(dialEndpoint),
	)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := Check(probeCtx, conn, cfg.ServiceName); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Check 查询标准健康服务，非 SERVING 视为失败。
func Check(ctx context.Context, conn grpc.ClientConnInterface, service string) error {
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("relay health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("relay health check: status %s", resp.GetStatus())
	}
	return nil
}

func dialEndpoint(ctx context.Context, endpoint string) (net.Conn, error) {
	switch {
	case strings.HasPrefix(endpoint, "unix://"):
		return (&net.Dialer{}).DialContext(ctx, "unix", strings.TrimPrefix(endpoint, "unix://"))
	case strings.HasPrefix(endpoint, "unix:"):
		return (&net.Dialer{}).DialContext(ctx, "unix", strings.TrimPrefix(endpoint, "unix:"))
	case strings.HasPrefix(endpoint, "vsock://"):
		return dialVsock(ctx, strings.TrimPrefix(endpoint, "vsock://"))
	case strings.HasPrefix(endpoint, "vsock:"):
		return dialVsock(ctx, strings.TrimPrefix(endpoint, "vsock:"))
	default:
		return (&net.Dialer{}).DialContext(ctx, "tcp", endpoint)
	}
}

// ParseVsock 解析 "cid:port"。
func ParseVsock(target string) (cid, port uint32, err error) {
	rawCID, rawPort, ok := strings.Cut(target, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid vsock endpoint: %s", target)
	}
	c, err := strconv.ParseUint(rawCID, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vsock cid: %w", err)
	}
	p, err := strconv.ParseUint(rawPort, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vsock port: %w", err)
	}
	return uint32(c), uint32(p), nil
}

func dialVsock(ctx context.Context, target string) (net.Conn, error) {
	cid, port, err := ParseVsock(target)
	if err != nil {
		return nil, err
	}
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, dialErr := vsock.Dial(cid, port, nil)
		resultCh <- dialResult{conn: conn, err: dialErr}
	}()
	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.conn, res.err
	}
}

// ListenVsock 在本机 vsock 端口上监听，供 relay 服务端在 enclave 宿主内使用。
func ListenVsock(port uint32) (net.Listener, error) {
	lis, err := vsock.Listen(port, nil)
	if err != nil {
		return nil, err
	}
	return lis, nil
}

