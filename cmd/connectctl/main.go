package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegis-sign/connect/internal/connect"
)

var (
	configPath string
	debug      bool
	relayBase  string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "connectctl",
	Short: "Drive identity and signing requests through a signing-agent relay",
	Long: `connectctl opens requests to a signing agent (address, transactions, signatures),
shows the request URI and waits for the agent to answer through the relay mailbox.
It can also play the agent side (deliver) and serve a local JSON-RPC endpoint (serve).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&relayBase, "relay", "", "override relay base URL, e.g. http://localhost:8081/topic/")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the signing agent")

	rootCmd.AddCommand(addressCmd, txCmd, signTypedCmd, personalSignCmd, serveCmd, deliverCmd, uriCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger) (connect.Config, error) {
	cfg, err := connect.LoadConfig(configPath)
	if err != nil {
		return connect.Config{}, err
	}
	if relayBase != "" {
		cfg.RelayBase = relayBase
	}
	cfg.Logger = logger
	return cfg, nil
}

// newClient 构造连接会话，请求 URI 打印到 stderr。
// appURL 在移动端且配置未指定 app_url 时作为回跳地址。
func newClient(ctx context.Context, cmd *cobra.Command, appURL string, opts ...connect.Option) (*connect.Client, error) {
	logger := newLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}
	if cfg.Mobile && cfg.AppURL == "" {
		cfg.AppURL = appURL
	}
	out := cmd.ErrOrStderr()
	opts = append([]connect.Option{
		connect.WithURIHandler(connect.URIHandlerFunc(func(_ context.Context, requestURI string) error {
			_, err := fmt.Fprintf(out, "open this request in your signing agent:\n  %s\n", requestURI)
			return err
		})),
	}, opts...)
	return connect.New(ctx, cfg, opts...)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
