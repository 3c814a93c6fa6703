package mux

import (
	"context"
	"log/slog"
	"sync"
)

// Listener 是持久订阅回调，每次发布都会调用直到取消订阅。
type Listener func(Outcome, error)

type listenerEntry struct {
	seq uint64
	fn  Listener
}

// Multiplexer 将任意传输送达的响应按请求 id 关联到等待方。
// 每个 id 维护一个 FIFO 的一次性 Future 队列和一组持久监听器。
type Multiplexer struct {
	verifier Verifier
	session  *Session
	metrics  *Metrics
	logger   *slog.Logger

	mu        sync.Mutex
	pending   map[string][]*Future
	listeners map[string][]listenerEntry
	seq       uint64
}

// Option 自定义 Multiplexer。
type Option func(*Multiplexer)

// WithVerifier 注入签名令牌校验器。
func WithVerifier(v Verifier) Option {
	return func(m *Multiplexer) { m.verifier = v }
}

// WithSession 共享外部会话对象。
func WithSession(s *Session) Option {
	return func(m *Multiplexer) { m.session = s }
}

// WithMetrics 注入指标。
func WithMetrics(metrics *Metrics) Option {
	return func(m *Multiplexer) { m.metrics = metrics }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(m *Multiplexer) { m.logger = l }
}

// New 构造 Multiplexer。
func New(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		pending:   make(map[string][]*Future),
		listeners: make(map[string][]listenerEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.session == nil {
		m.session = &Session{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Session 返回会话状态。
func (m *Multiplexer) Session() *Session {
	return m.session
}

// Subscribe 注册一次性 Future，首次发布后自动移除。
func (m *Multiplexer) Subscribe(id string) *Future {
	f := newFuture()
	f.withdraw = func() bool { return m.withdraw(id, f) }
	m.mu.Lock()
	m.pending[id] = append(m.pending[id], f)
	m.mu.Unlock()
	m.metrics.addWaiting(1)
	return f
}

func (m *Multiplexer) withdraw(id string, f *Future) bool {
	m.mu.Lock()
	queue := m.pending[id]
	idx := -1
	for i, q := range queue {
		if q == f {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	queue = append(queue[:idx:idx], queue[idx+1:]...)
	if len(queue) == 0 {
		delete(m.pending, id)
	} else {
		m.pending[id] = queue
	}
	m.mu.Unlock()
	m.metrics.addWaiting(-1)
	return true
}

// Listen 注册持久监听器，返回取消函数（可重复调用）。
func (m *Multiplexer) Listen(id string, fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.listeners[id] = append(m.listeners[id], listenerEntry{seq: seq, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			entries := m.listeners[id]
			for i, e := range entries {
				if e.seq == seq {
					entries = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(entries) == 0 {
				delete(m.listeners, id)
			} else {
				m.listeners[id] = entries
			}
		})
	}
}

// Publish 解析响应并投递给最早的等待 Future 和全部监听器。
// 缺少 id 时立即返回 ErrMissingID；解析失败以拒绝结果投递，不作为返回值。
func (m *Multiplexer) Publish(ctx context.Context, resp Response) error {
	if resp.ID == "" {
		return ErrMissingID
	}
	outcome, err := m.parse(ctx, resp)
	if err == nil {
		m.session.merge(outcome.Claims)
	}
	m.metrics.observePublished(err)

	m.mu.Lock()
	var future *Future
	if queue := m.pending[resp.ID]; len(queue) > 0 {
		future = queue[0]
		queue[0] = nil
		if len(queue) == 1 {
			delete(m.pending, resp.ID)
		} else {
			m.pending[resp.ID] = queue[1:]
		}
	}
	entries := append([]listenerEntry(nil), m.listeners[resp.ID]...)
	m.mu.Unlock()

	if future == nil && len(entries) == 0 {
		m.metrics.incUnclaimed()
		m.logger.Debug("response has no subscriber", slog.String("id", resp.ID))
		return nil
	}
	if future != nil {
		m.metrics.addWaiting(-1)
		future.settle(outcome, err)
	}
	for _, e := range entries {
		e.fn(outcome, err)
	}
	return nil
}

// Pending 返回某 id 下等待中的 Future 数量。
func (m *Multiplexer) Pending(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[id])
}
