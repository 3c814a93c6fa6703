package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aegis-sign/connect/internal/app/addresscache"
	"github.com/aegis-sign/connect/pkg/apierrors"
)

// ErrSyncUnsupported 是同步调用入口的固定错误。
var ErrSyncUnsupported = apierrors.New(apierrors.CodeSyncUnsupported, "synchronous requests are not supported, use Handle with a context")

// ErrMethodNotFound 表示未拦截的方法且没有配置 BaseProvider。
var ErrMethodNotFound = apierrors.New(apierrors.CodeNotFound, "method not supported")

// Subprovider 拦截身份与签名相关的 JSON-RPC 方法，其余方法原样转发给 BaseProvider。
type Subprovider struct {
	cfg     Config
	collab  Collaborators
	cache   *addresscache.Cache
	logger  *slog.Logger
	metrics *Metrics
}

// Option 自定义 Subprovider。
type Option func(*Subprovider)

// WithAddressCache 共享外部地址缓存。
func WithAddressCache(c *addresscache.Cache) Option {
	return func(s *Subprovider) { s.cache = c }
}

// New 构造 Subprovider；地址请求与交易发送协作者必填。
func New(cfg Config, collab Collaborators, opts ...Option) (*Subprovider, error) {
	if collab.Addresses == nil {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "address requester is required")
	}
	if collab.Sender == nil {
		return nil, apierrors.New(apierrors.CodeInvalidArgument, "transaction sender is required")
	}
	cfg = cfg.normalize()
	s := &Subprovider{
		cfg:     cfg,
		collab:  collab,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.cache == nil {
		s.cache = addresscache.New(addresscache.WithLogger(s.logger))
	}
	return s, nil
}

// Send 是同步调用入口，总是失败。
func (s *Subprovider) Send(Request) (Response, error) {
	return Response{}, ErrSyncUnsupported
}

// Reset 清除缓存地址（登出）。
func (s *Subprovider) Reset() {
	s.cache.Reset()
}

// CachedAddress 返回已缓存的地址。
func (s *Subprovider) CachedAddress() (string, bool) {
	return s.cache.Get()
}

// Handle 处理单个请求。误用类错误在调用任何协作者之前返回。
func (s *Subprovider) Handle(ctx context.Context, req Request) Response {
	result, err := s.Call(ctx, req.Method, req.Params)
	if err != nil {
		return newError(req.ID, err)
	}
	return newResult(req.ID, result)
}

// HandleBatch 独立处理每个条目并按输入顺序返回；单个失败不影响其他条目。
func (s *Subprovider) HandleBatch(ctx context.Context, reqs []Request) []Response {
	s.metrics.observeBatch(len(reqs))
	out := make([]Response, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range reqs {
		g.Go(func() error {
			out[i] = s.Handle(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ServeJSON 处理原始请求体：单个对象或批量数组。
func (s *Subprovider) ServeJSON(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(body, &reqs); err != nil {
			return mustMarshal(parseError(err))
		}
		if len(reqs) == 0 {
			return mustMarshal(invalidRequest("empty batch"))
		}
		return mustMarshal(s.HandleBatch(ctx, reqs))
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return mustMarshal(parseError(err))
	}
	if req.Method == "" {
		return mustMarshal(invalidRequest("method is required"))
	}
	return mustMarshal(s.Handle(ctx, req))
}

// Call 按方法名分派，返回 result 的 JSON 编码。
func (s *Subprovider) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	var (
		result json.RawMessage
		err    error
		route  = method
	)
	switch method {
	case "eth_coinbase":
		result, err = s.coinbase(ctx)
	case "eth_accounts":
		result, err = s.accounts(ctx)
	case "eth_sendTransaction":
		result, err = s.sendTransaction(ctx, params)
	case "eth_signTypedData", "eth_signTypedData_v3":
		result, err = s.signTypedData(ctx, params)
	case "personal_sign":
		result, err = s.personalSign(ctx, params)
	default:
		route = "forwarded"
		result, err = s.forward(ctx, method, params)
	}
	s.metrics.observeCall(route, err)
	if err != nil {
		s.logger.Debug("rpc call failed", slog.String("method", method), slog.Any("err", err))
	}
	return result, err
}

func parseError(err error) Response {
	return Response{JSONRPC: version, ID: json.RawMessage("null"), Error: &RPCError{Code: codeParseError, Message: "parse error: " + err.Error()}}
}

func invalidRequest(msg string) Response {
	return Response{JSONRPC: version, ID: json.RawMessage("null"), Error: &RPCError{Code: codeInvalidRequest, Message: msg}}
}

func mustMarshal(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"encode response"}}`)
	}
	return out
}
