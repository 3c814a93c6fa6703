package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// Client 实现 topic.RelayClient，并提供 Post 供签名端模拟器与 CLI 使用。
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// Option 自定义 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New 构造 Client。
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	c := &Client{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c
}

// Get 读取 relay 邮箱；非 2xx 视为传输错误。
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Delete 清理 relay 邮箱。
func (c *Client) Delete(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodDelete, url, nil)
	return err
}

// Post 向 relay 邮箱写入结果对象，例如 {"access_token": "..."}。
func (c *Client) Post(ctx context.Context, url string, message map[string]any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return apierrors.New(apierrors.CodeInvalidArgument, "encode relay message: "+err.Error())
	}
	_, err = c.do(ctx, http.MethodPost, url, body)
	return err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		c.logger.Debug("relay request failed", slog.String("method", method), slog.String("url", url), slog.Int("status", resp.StatusCode))
		return nil, apierrors.New(apierrors.CodeTransport, fmt.Sprintf("relay %s %s: status %d", method, url, resp.StatusCode))
	}
	return payload, nil
}
