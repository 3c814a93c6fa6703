package addresscache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const flightKey = "address"

// FetchFunc 向签名端请求地址；返回的地址应已通过网络校验。
type FetchFunc func(ctx context.Context) (string, error)

// Clock 用于可测试的时间来源。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Cache 缓存签名端返回的账户地址，没有过期策略，只能通过 Reset 手动清除。
// 并发未命中经 singleflight 合并为一次请求。
type Cache struct {
	clock   Clock
	metrics *Metrics
	logger  *slog.Logger
	group   singleflight.Group

	mu         sync.RWMutex
	address    string
	resolvedAt time.Time
	generation uint64

	flightMu sync.Mutex
	flight   *flight
}

// flight 是合并请求共享的上下文，最后一个等待方离开时取消。
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option 自定义 Cache。
type Option func(*Cache)

// WithClock 注入时钟。
func WithClock(c Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithMetrics 注入指标。
func WithMetrics(m *Metrics) Option {
	return func(cache *Cache) { cache.metrics = m }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(cache *Cache) { cache.logger = l }
}

// New 创建空缓存。
func New(opts ...Option) *Cache {
	c := &Cache{clock: realClock{}, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get 返回缓存地址，ok=false 表示未缓存。
func (c *Cache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address, c.address != ""
}

// ResolvedAt 返回地址写入缓存的时间。
func (c *Cache) ResolvedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolvedAt
}

// Set 直接写入地址，例如从会话恢复。
func (c *Cache) Set(address string) {
	c.mu.Lock()
	c.address = address
	c.resolvedAt = c.clock.Now()
	c.mu.Unlock()
}

// Reset 清空缓存；正在进行的请求结果不会再写回。
func (c *Cache) Reset() {
	c.mu.Lock()
	c.address = ""
	c.resolvedAt = time.Time{}
	c.generation++
	c.mu.Unlock()
	c.group.Forget(flightKey)
}

// Resolve 命中时直接返回；未命中时调用 fetch 并在成功后缓存。
// fetch 的错误原样返回且不写缓存。ctx 只约束本次调用的等待，
// 合并的 fetch 在所有等待方都离开后才被取消。
func (c *Cache) Resolve(ctx context.Context, fetch FetchFunc) (string, error) {
	if addr, ok := c.Get(); ok {
		c.metrics.incLookup("hit")
		return addr, nil
	}
	c.metrics.incLookup("miss")

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	done := c.metrics.addWaiter()
	defer done()

	f := c.join(ctx)
	defer c.leave(f)

	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		addr, err := fetch(f.ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.address = addr
			c.resolvedAt = c.clock.Now()
		}
		c.mu.Unlock()
		return addr, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.incFetchFailure()
			c.logger.Warn("address request failed", slog.Bool("shared", res.Shared), slog.Any("err", res.Err))
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) join(ctx context.Context) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if c.flight == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.flight = &flight{ctx: fctx, cancel: cancel}
	}
	c.flight.waiters++
	return c.flight
}

func (c *Cache) leave(f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flight == f {
		c.flight = nil
		// 已取消的请求不能被后来者合并。
		c.group.Forget(flightKey)
	}
}
