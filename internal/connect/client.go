// Package connect 组装 Topic 工厂、响应复用器、请求 URI 与推送通道，
// 为 Subprovider 提供地址、交易与签名协作者。
package connect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegis-sign/connect/internal/app/addresscache"
	"github.com/aegis-sign/connect/internal/gateway/push"
	"github.com/aegis-sign/connect/internal/infra/relayclient"
	"github.com/aegis-sign/connect/internal/mux"
	"github.com/aegis-sign/connect/internal/provider"
	"github.com/aegis-sign/connect/internal/topic"
	"github.com/aegis-sign/connect/internal/uri"
)

// Client 是一次连接会话：所有请求共享同一个复用器、会话状态与地址缓存。
type Client struct {
	cfg      Config
	factory  *topic.Factory
	mux      *mux.Multiplexer
	builder  uri.Builder
	provider *provider.Subprovider
	push     *push.Dispatcher
	handler  URIHandler
	rpc      *rpc.Client
	logger   *slog.Logger

	// fragment 仅在移动端且未注入导航事件源时非空。
	fragment http.Handler
}

type options struct {
	relay      topic.RelayClient
	nav        topic.NavigationSource
	dialer     topic.StreamDialer
	newID      func() (string, error)
	verifier   mux.Verifier
	handler    URIHandler
	pushSender push.Sender
	base       provider.BaseProvider
	reg        prometheus.Registerer
}

// Option 注入 Client 的外部能力。
type Option func(*options)

// WithRelayClient 替换默认的 relay HTTP 客户端。
func WithRelayClient(c topic.RelayClient) Option {
	return func(o *options) { o.relay = c }
}

// WithNavigationSource 注入移动端导航事件源。
func WithNavigationSource(nav topic.NavigationSource) Option {
	return func(o *options) { o.nav = nav }
}

// WithStreamDialer 自定义 websocket 拨号器。
func WithStreamDialer(d topic.StreamDialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithIDGenerator 替换 topic id 生成器。
func WithIDGenerator(fn func() (string, error)) Option {
	return func(o *options) { o.newID = fn }
}

// WithVerifier 注入签名令牌校验器。
func WithVerifier(v mux.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithURIHandler 设置请求 URI 的展示方式（二维码、深链接等）。
func WithURIHandler(h URIHandler) Option {
	return func(o *options) { o.handler = h }
}

// WithPushSender 启用推送快速通道并使用给定 Sender。
func WithPushSender(s push.Sender) Option {
	return func(o *options) { o.pushSender = s }
}

// WithBaseProvider 设置未拦截方法的上游。
func WithBaseProvider(b provider.BaseProvider) Option {
	return func(o *options) { o.base = b }
}

// WithRegisterer 为各组件注册 Prometheus 指标。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// New 构造 Client。ctx 只用于初始化（拨号上游节点、初始化 FCM）。
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.normalize()
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := cfg.Logger

	var (
		topicMetrics    *topic.Metrics
		muxMetrics      *mux.Metrics
		providerMetrics *provider.Metrics
		pushMetrics     *push.Metrics
		cacheMetrics    *addresscache.Metrics
	)
	if o.reg != nil {
		topicMetrics = topic.NewMetrics(o.reg)
		muxMetrics = mux.NewMetrics(o.reg)
		providerMetrics = provider.NewMetrics(o.reg)
		pushMetrics = push.NewMetrics(o.reg)
		cacheMetrics = addresscache.NewMetrics(o.reg)
	}

	c := &Client{
		cfg:     cfg,
		builder: uri.Builder{Scheme: cfg.Scheme, Label: cfg.Label, ClientID: cfg.ClientID},
		handler: o.handler,
		logger:  logger,
	}
	if c.handler == nil {
		c.handler = logHandler(logger)
	}

	if cfg.Mobile && o.nav == nil {
		loc := topic.NewLocation(cfg.AppURL)
		o.nav = loc
		c.fragment = topic.NewFragmentHandler(loc)
	}
	if o.relay == nil && !cfg.Mobile && !cfg.Stream {
		o.relay = relayclient.New(relayclient.LoadConfigFromEnv(), relayclient.WithLogger(logger))
	}
	factoryOpts := []topic.Option{
		topic.WithRelayClient(o.relay),
		topic.WithNavigationSource(o.nav),
		topic.WithStreamDialer(o.dialer),
	}
	if o.newID != nil {
		factoryOpts = append(factoryOpts, topic.WithIDGenerator(o.newID))
	}
	factory, err := topic.NewFactory(topic.Config{
		RelayBase:    cfg.RelayBase,
		PollInterval: cfg.PollInterval,
		IsOnMobile:   cfg.Mobile,
		Stream:       cfg.Stream,
		Logger:       logger,
		Metrics:      topicMetrics,
	}, factoryOpts...)
	if err != nil {
		return nil, fmt.Errorf("topic factory: %w", err)
	}
	c.factory = factory

	c.mux = mux.New(
		mux.WithVerifier(o.verifier),
		mux.WithMetrics(muxMetrics),
		mux.WithLogger(logger),
	)

	base := o.base
	if base == nil && cfg.RPCURL != "" {
		client, err := provider.DialBaseProvider(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial base provider %s: %w", cfg.RPCURL, err)
		}
		c.rpc = client
		base = client
	}

	sender := o.pushSender
	if sender == nil && cfg.Push.Enabled {
		sender, err = newPushSender(ctx, cfg.Push)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	if sender != nil {
		dispatcher, err := push.NewDispatcher(push.Config{
			Workers:   cfg.Push.Workers,
			RateLimit: cfg.Push.RateLimit,
			RateBurst: cfg.Push.RateBurst,
			Logger:    logger,
			Metrics:   pushMetrics,
		}, sender, c.onPushResult)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("push dispatcher: %w", err)
		}
		c.push = dispatcher
	}

	cache := addresscache.New(addresscache.WithLogger(logger), addresscache.WithMetrics(cacheMetrics))
	sp, err := provider.New(provider.Config{
		Network:          cfg.Network,
		BatchConcurrency: cfg.BatchConcurrency,
		Logger:           logger,
		Metrics:          providerMetrics,
	}, provider.Collaborators{
		Addresses: c,
		Sender:    c,
		TypedData: c,
		Personal:  c,
		Base:      base,
	}, provider.WithAddressCache(cache))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.provider = sp
	return c, nil
}

func newPushSender(ctx context.Context, cfg PushConfig) (push.Sender, error) {
	if cfg.FCM.ProjectID != "" || cfg.FCM.CredentialsFile != "" {
		sender, err := push.NewFCMSender(ctx, cfg.FCM)
		if err != nil {
			return nil, fmt.Errorf("fcm sender: %w", err)
		}
		return sender, nil
	}
	return push.NewRelaySender(cfg.RelayURL, nil), nil
}

// Provider 返回 JSON-RPC Subprovider。
func (c *Client) Provider() *provider.Subprovider {
	return c.provider
}

// Multiplexer 返回共享的响应复用器。
func (c *Client) Multiplexer() *mux.Multiplexer {
	return c.mux
}

// Strategy 返回当前 Topic 投递策略。
func (c *Client) Strategy() topic.Strategy {
	return c.factory.Strategy()
}

// CallbackHandler 返回回调端点，签名端可直接 POST `{id, payload | error}`。
func (c *Client) CallbackHandler() http.Handler {
	return mux.NewCallbackHandler(c.mux)
}

// FragmentHandler 返回移动端回跳端点，需挂载在 AppURL 的路径上。
// 非移动端或注入了自定义导航事件源时返回 nil。
func (c *Client) FragmentHandler() http.Handler {
	return c.fragment
}

// AppURL 返回移动端回跳地址。
func (c *Client) AppURL() string {
	return c.cfg.AppURL
}

// PushDebugHandler 返回推送队列快照，未启用推送时返回 nil。
func (c *Client) PushDebugHandler() http.Handler {
	if c.push == nil {
		return nil
	}
	return c.push.DebugHandler()
}

// Logout 清除地址缓存与会话字段。
func (c *Client) Logout() {
	c.provider.Reset()
	c.mux.Session().Reset()
}

// Close 停止推送 worker 并关闭上游连接，可重复调用。
func (c *Client) Close() {
	if c.push != nil {
		c.push.Close()
	}
	if c.rpc != nil {
		c.rpc.Close()
	}
}
