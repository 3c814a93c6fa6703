package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aegis-sign/connect/pkg/apierrors"
	"github.com/aegis-sign/connect/pkg/validator"
)

// Service 实现邮箱语义：先写者胜、TTL、按 id 限流、写入后通知订阅者。
type Service struct {
	cfg     Config
	store   Store
	hub     *hub
	limiter *keyLimiter
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option 自定义 Service。
type Option func(*Service)

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 构造服务；store 为空时使用内存存储。
func NewService(cfg Config, store Store, opts ...Option) *Service {
	normalized := cfg.normalize()
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Service{
		cfg:     normalized,
		store:   store,
		hub:     newHub(),
		limiter: newKeyLimiter(normalized.DeliverRate, normalized.DeliverBurst, normalized.TTL),
		metrics: normalized.Metrics,
		logger:  normalized.Logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OpenStore 根据配置选择存储后端。
func OpenStore(cfg Config) (Store, error) {
	if cfg.SQLitePath == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLiteStore(cfg.SQLitePath)
}

// Fetch 返回邮箱消息；ok=false 表示尚无消息。
func (s *Service) Fetch(ctx context.Context, id string) (msg json.RawMessage, ok bool, err error) {
	defer func() { s.metrics.observe("fetch", codeOf(err)) }()
	if err := checkID(id); err != nil {
		return nil, false, err
	}
	box, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, s.internal("fetch", id, err)
	}
	if !found {
		return nil, false, nil
	}
	if s.expired(box) {
		_ = s.store.Delete(ctx, id)
		s.metrics.addExpired(1)
		return nil, false, nil
	}
	return box.Message, true, nil
}

// Deliver 写入消息，消息必须是 JSON 对象，例如 {"tx":"0x..."} 或 {"error":"denied"}。
func (s *Service) Deliver(ctx context.Context, id string, msg json.RawMessage) (err error) {
	defer func() { s.metrics.observe("deliver", codeOf(err)) }()
	if err := checkID(id); err != nil {
		return err
	}
	if int64(len(msg)) > s.cfg.MaxMessageBytes {
		return apierrors.New(apierrors.CodeInvalidArgument, "message too large")
	}
	if !gjson.ValidBytes(msg) || !gjson.ParseBytes(msg).IsObject() {
		return apierrors.New(apierrors.CodeInvalidArgument, "message must be a JSON object")
	}
	now := s.now()
	if ok, wait := s.limiter.reserve(id, now); !ok {
		return apierrors.New(apierrors.CodeRetryLater, "too many deliveries for topic").WithRetryAfter(wait)
	}
	if box, found, err := s.store.Get(ctx, id); err == nil && found && s.expired(box) {
		_ = s.store.Delete(ctx, id)
		s.metrics.addExpired(1)
	}
	stored := append(json.RawMessage(nil), msg...)
	if err := s.store.Put(ctx, id, Mailbox{Message: stored, CreatedAt: now}); err != nil {
		if errors.Is(err, ErrExists) {
			return apierrors.New(apierrors.CodeConflict, "topic already has a message")
		}
		return s.internal("deliver", id, err)
	}
	s.hub.publish(id, stored)
	s.logger.Debug("mailbox delivered", slog.String("topic", id))
	return nil
}

// Clear 删除邮箱，不存在时同样成功。
func (s *Service) Clear(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.observe("clear", codeOf(err)) }()
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.internal("clear", id, err)
	}
	return nil
}

// Watch 等待邮箱消息：已存在则立即返回，否则阻塞到写入或 ctx 结束。
// Watch 不删除邮箱，调用方确认消息送达后再调用 Clear。
func (s *Service) Watch(ctx context.Context, id string) (json.RawMessage, error) {
	ch, cancel := s.hub.watch(id)
	defer cancel()
	s.metrics.addWatcher(1)
	defer s.metrics.addWatcher(-1)

	msg, ok, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg = <-ch:
		}
	}
	return msg, nil
}

// Watchers 返回当前订阅数。
func (s *Service) Watchers() int {
	return s.hub.count()
}

// Sweep 删除过期邮箱。
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.DeleteBefore(ctx, s.now().Add(-s.cfg.TTL))
	if err != nil {
		return 0, err
	}
	s.metrics.addExpired(n)
	return n, nil
}

// RunSweeper 周期性清理，直到 ctx 结束。
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("mailbox sweep failed", slog.Any("err", err))
			} else if n > 0 {
				s.logger.Info("mailboxes expired", slog.Int("count", n))
			}
		}
	}
}

// Close 关闭底层存储。
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) expired(box Mailbox) bool {
	return s.now().Sub(box.CreatedAt) > s.cfg.TTL
}

func (s *Service) internal(op, id string, err error) error {
	s.logger.Error("mailbox store failed", slog.String("op", op), slog.String("topic", id), slog.Any("err", err))
	return apierrors.New(apierrors.Code("INTERNAL_ERROR"), "mailbox store unavailable")
}

func checkID(id string) error {
	if err := validator.ValidateTopicID(id); err != nil {
		return apierrors.New(apierrors.CodeInvalidArgument, err.Error())
	}
	return nil
}

func codeOf(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := apierrors.FromError(err); ok {
		return string(apiErr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(apierrors.CodeCancelled)
	}
	return "INTERNAL_ERROR"
}
