package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aegis-sign/connect/internal/connect"
	"github.com/aegis-sign/connect/internal/provider"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local JSON-RPC endpoint backed by the signing agent",
	Long: `serve exposes the Subprovider over HTTP:
  POST /            JSON-RPC (single or batch)
  POST /callback    direct responses {id, payload | error}
  GET  /fragment    mobile return link ?name=value (mobile mode)
  GET  /debug/push  push queue snapshot (when push is enabled)
  GET  /metrics     Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "listen", "l", "127.0.0.1:8545", "listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	client, err := newClient(ctx, cmd, "http://"+serveAddr+fragmentPath, connect.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer client.Close()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           newServeMux(client, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := newLogger()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("JSON-RPC endpoint listening", "addr", serveAddr, "strategy", client.Strategy())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

const fragmentPath = "/fragment"

func newServeMux(client *connect.Client, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", provider.NewHTTPHandler(client.Provider()))
	mux.Handle("/callback", client.CallbackHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if h := client.PushDebugHandler(); h != nil {
		mux.Handle("/debug/push", h)
	}
	if h := client.FragmentHandler(); h != nil {
		mux.Handle(fragmentPath, h)
	}
	return mux
}

// serveFragment 为单次请求在 AppURL 上临时监听移动端回跳；非移动端直接返回。
func serveFragment(client *connect.Client, logger *slog.Logger) (stop func(), err error) {
	h := client.FragmentHandler()
	if h == nil {
		return func() {}, nil
	}
	u, err := url.Parse(client.AppURL())
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid app url %q", client.AppURL())
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen for mobile return link: %w", err)
	}
	route := u.Path
	if route == "" {
		route = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(route, h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("mobile return link stopped", "err", err)
		}
	}()
	return func() { _ = srv.Close() }, nil
}
