package topic

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// Strategy 标识 Topic 的投递策略。
type Strategy string

const (
	StrategyPoll      Strategy = "poll"
	StrategyHashWatch Strategy = "hashwatch"
	StrategyStream    Strategy = "stream"
)

// Factory 创建 Topic，并为其启动构造时选定的投递策略。
type Factory struct {
	cfg      Config
	strategy Strategy

	relay   RelayClient
	nav     NavigationSource
	dialer  StreamDialer
	metrics *Metrics
	logger  *slog.Logger
	newID   func() (string, error)
}

// Option 允许注入 Factory 的外部能力。
type Option func(*Factory)

// WithRelayClient 注入桌面端 relay 客户端。
func WithRelayClient(c RelayClient) Option {
	return func(f *Factory) { f.relay = c }
}

// WithNavigationSource 注入移动端导航事件源。
func WithNavigationSource(nav NavigationSource) Option {
	return func(f *Factory) { f.nav = nav }
}

// WithStreamDialer 自定义 websocket 拨号器。
func WithStreamDialer(d StreamDialer) Option {
	return func(f *Factory) { f.dialer = d }
}

// WithIDGenerator 替换 topic id 生成器（测试用）。
func WithIDGenerator(fn func() (string, error)) Option {
	return func(f *Factory) { f.newID = fn }
}

// NewFactory 根据配置选定策略并校验所需能力是否齐备。
func NewFactory(cfg Config, opts ...Option) (*Factory, error) {
	normalized := cfg.normalize()
	f := &Factory{
		cfg:     normalized,
		metrics: normalized.Metrics,
		logger:  normalized.Logger,
		newID:   randomID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	switch {
	case normalized.IsOnMobile:
		f.strategy = StrategyHashWatch
		if f.nav == nil {
			return nil, errors.New("navigation source is required on mobile")
		}
	case normalized.Stream:
		f.strategy = StrategyStream
		if f.dialer == nil {
			f.dialer = NewWebsocketDialer(nil)
		}
	default:
		f.strategy = StrategyPoll
		if f.relay == nil {
			return nil, errors.New("relay client is required for polling")
		}
	}
	return f, nil
}

// Strategy 返回构造时选定的策略。
func (f *Factory) Strategy() Strategy {
	return f.strategy
}

// CreateTopic 生成新的 Topic 并启动投递策略；ctx 结束等价于 Cancel。
func (f *Factory) CreateTopic(ctx context.Context, name string) (*Topic, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := f.newID()
	if err != nil {
		return nil, apierrors.New(apierrors.CodeTransport, "generate topic id: "+err.Error())
	}

	var t *Topic
	if f.strategy == StrategyHashWatch {
		t = newTopic(id, name, stripFragment(f.nav.Location()))
	} else {
		t = newTopic(id, name, f.cfg.RelayBase+id)
	}
	strategy := f.strategy
	t.onSettle = func(_ Payload, err error) {
		f.metrics.observeSettled(strategy, outcomeLabel(err))
	}
	f.metrics.incCreated(strategy)

	stop := context.AfterFunc(ctx, t.Cancel)
	t.addTeardown(func() { stop() })

	switch f.strategy {
	case StrategyHashWatch:
		f.watchFragment(t)
	case StrategyStream:
		f.startStream(t)
	default:
		f.startPolling(t)
	}
	f.logger.Debug("topic created", slog.String("topic", t.ID), slog.String("name", name), slog.String("strategy", string(strategy)))
	return t, nil
}

func randomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func stripFragment(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		if i := strings.IndexByte(location, '#'); i >= 0 {
			return location[:i]
		}
		return location
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "rejected"
	}
}
