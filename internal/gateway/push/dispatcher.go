package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull 当队列无可用 slot 时返回。
	ErrQueueFull = errors.New("push dispatcher queue full")
	// ErrRateLimited 表示命中速率限制。
	ErrRateLimited = errors.New("push dispatcher rate limited")
	// ErrClosed 表示 Dispatcher 已关闭。
	ErrClosed = errors.New("push dispatcher closed")
)

// Message 是一条推送给签名端的请求通知。
type Message struct {
	// TopicID 用于去重：同一 Topic 只推送一次。
	TopicID string
	// URI 是请求 URI，签名端据此展示请求。
	URI string
	// PushToken 与 PublicEncKey 来自已校验的会话。
	PushToken    string
	PublicEncKey string
}

// Sender 执行一次发送，不重试。
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Result 是一次发送的结果。
type Result struct {
	Message  Message
	Err      error
	Duration time.Duration
}

// Dispatcher 接收推送请求、排队并由 worker 调用 Sender。
// 发送失败只记录并回调 OnResult，由调用方决定是否回退到 URI 展示。
type Dispatcher struct {
	cfg    Config
	sender Sender

	queue   chan Message
	stopCh  chan struct{}
	metrics *Metrics
	logger  *slog.Logger

	limiter  atomic.Pointer[rate.Limiter]
	onResult func(Result)

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewDispatcher 创建并启动后台 worker。
func NewDispatcher(cfg Config, sender Sender, onResult func(Result)) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	normalized := cfg.normalize()
	d := &Dispatcher{
		cfg:      normalized,
		sender:   sender,
		queue:    make(chan Message, normalized.MaxQueue),
		stopCh:   make(chan struct{}),
		metrics:  normalized.Metrics,
		logger:   normalized.Logger,
		onResult: onResult,
		inflight: make(map[string]struct{}),
	}
	d.UpdateRateLimit(normalized.RateLimit)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}
	return d, nil
}

// Enqueue 将消息放入队列；同一 TopicID 在飞时重复入队直接忽略。
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	if msg.TopicID == "" {
		return errors.New("topic id is required for push")
	}
	if msg.PushToken == "" {
		return errors.New("push token is required")
	}
	if limiter := d.limiter.Load(); limiter != nil && !limiter.Allow() {
		d.metrics.incRejected("rate_limited")
		return ErrRateLimited
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if _, ok := d.inflight[msg.TopicID]; ok {
		d.mu.Unlock()
		return nil
	}
	d.inflight[msg.TopicID] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- msg:
		d.metrics.incQueueDepth()
		d.logger.Debug("push enqueued", slog.String("topic", msg.TopicID), slog.String("sender", d.sender.Name()))
		return nil
	default:
		d.finish(msg.TopicID)
		d.metrics.incRejected("queue_full")
		return ErrQueueFull
	}
}

// Close 停止 worker；队列中未发送的消息被丢弃。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.stopCh)
	d.wg.Wait()
}

// UpdateRateLimit 热更新速率限制，<=0 表示不限速。
func (d *Dispatcher) UpdateRateLimit(rateValue float64) {
	if rateValue <= 0 {
		d.limiter.Store(nil)
		return
	}
	d.limiter.Store(rate.NewLimiter(rate.Limit(rateValue), d.cfg.RateBurst))
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case msg := <-d.queue:
			d.handle(msg)
		}
	}
}

func (d *Dispatcher) handle(msg Message) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-d.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	err := d.sender.Send(ctx, msg)
	elapsed := time.Since(start)

	d.finish(msg.TopicID)
	d.metrics.decQueueDepth()
	d.metrics.observeSent(d.sender.Name(), err, float64(elapsed.Milliseconds()))
	if err != nil {
		d.logger.Warn("push send failed", slog.String("topic", msg.TopicID), slog.String("sender", d.sender.Name()), slog.Any("err", err))
	}
	if d.onResult != nil {
		d.onResult(Result{Message: msg, Err: err, Duration: elapsed})
	}
}

func (d *Dispatcher) finish(topicID string) {
	d.mu.Lock()
	delete(d.inflight, topicID)
	d.mu.Unlock()
}
