package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	relayapi "github.com/aegis-sign/connect/internal/api"
	"github.com/aegis-sign/connect/internal/gateway/relay"
	"github.com/aegis-sign/connect/internal/infra/relaygrpc"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadServerConfig(os.Getenv("RELAY_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("RELAY_VSOCK_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			logger.Error("invalid RELAY_VSOCK_PORT", "error", err)
			os.Exit(1)
		}
		cfg.VsockPort = uint32(port)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relayCfg := cfg.relayConfig()
	relayCfg.Logger = logger
	relayCfg.Metrics = relay.NewMetrics(reg)
	store, err := relay.OpenStore(relayCfg)
	if err != nil {
		logger.Error("failed to open mailbox store", "error", err)
		os.Exit(1)
	}
	svc := relay.NewService(relayCfg, store)
	defer svc.Close()
	go svc.RunSweeper(ctx)

	// HTTP server wiring
	router := relayapi.NewHTTPHandler(svc, relayapi.WithLogger(logger)).Router(cfg.Prefix)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", httpSrv.Addr, "prefix", cfg.Prefix)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server closed unexpectedly", "error", err)
			stop()
		}
	}()

	// gRPC server wiring
	grpcSrv := grpc.NewServer()
	relayapi.RegisterRelayServer(grpcSrv, relayapi.NewGRPCServer(svc))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(relayapi.RelayServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "error", err)
		os.Exit(1)
	}
	serveGRPC(grpcSrv, lis, cfg.GRPCAddr, logger, stop)

	if cfg.VsockPort != 0 {
		vlis, err := relaygrpc.ListenVsock(cfg.VsockPort)
		if err != nil {
			logger.Error("failed to listen on vsock", "port", cfg.VsockPort, "error", err)
			os.Exit(1)
		}
		serveGRPC(grpcSrv, vlis, "vsock:"+strconv.FormatUint(uint64(cfg.VsockPort), 10), logger, stop)
	}

	<-ctx.Done()
	logger.Info("shutting down servers")
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	grpcSrv.GracefulStop()
}

func serveGRPC(srv *grpc.Server, lis net.Listener, addr string, logger *slog.Logger, stop context.CancelFunc) {
	go func() {
		logger.Info("gRPC server listening", "addr", addr)
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server closed unexpectedly", "error", err)
			stop()
		}
	}()
}
