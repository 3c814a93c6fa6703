package topic

import (
	"context"
	"sync"
	"sync/atomic"
)

// Topic 把一次出站请求绑定到未来某个带外结果上，只结算一次。
type Topic struct {
	ID   string
	Name string
	URL  string

	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
	payload   Payload
	err       error

	mu       sync.Mutex
	closed   bool
	teardown []func()
	onSettle func(payload Payload, err error)
}

func newTopic(id, name, url string) *Topic {
	return &Topic{ID: id, Name: name, URL: url, done: make(chan struct{})}
}

// Done 在 Topic 结算后关闭。
func (t *Topic) Done() <-chan struct{} {
	return t.done
}

// Wait 阻塞直到结算或 ctx 结束；ctx 结束不会取消 Topic。
// 结算之后调用总是得到已存储的结果。
func (t *Topic) Wait(ctx context.Context) (Payload, error) {
	select {
	case <-t.done:
		return t.payload, t.err
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	}
}

// Result 非阻塞读取结果，ok=false 表示尚未结算。
func (t *Topic) Result() (payload Payload, err error, ok bool) {
	select {
	case <-t.done:
		return t.payload, t.err, true
	default:
		return Payload{}, nil, false
	}
}

// Cancel 标记取消并立即以 ErrCancelled 结算，随后拆除投递策略。
// 已结算的 Topic 调用 Cancel 无任何效果。
func (t *Topic) Cancel() {
	t.cancelled.Store(true)
	t.reject(ErrCancelled)
}

// Cancelled 报告 Cancel 是否被调用过。
func (t *Topic) Cancelled() bool {
	return t.cancelled.Load()
}

func (t *Topic) resolve(p Payload) bool {
	return t.settle(p, nil)
}

func (t *Topic) reject(err error) bool {
	return t.settle(Payload{}, err)
}

func (t *Topic) settle(p Payload, err error) bool {
	settled := false
	t.once.Do(func() {
		t.payload = p
		t.err = err
		settled = true
		close(t.done)
	})
	if !settled {
		return false
	}
	t.mu.Lock()
	t.closed = true
	hooks := t.teardown
	t.teardown = nil
	t.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	if t.onSettle != nil {
		t.onSettle(p, err)
	}
	return true
}

// addTeardown 注册结算时执行的清理函数；已结算则立即执行。
func (t *Topic) addTeardown(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		fn()
		return
	}
	t.teardown = append(t.teardown, fn)
	t.mu.Unlock()
}
