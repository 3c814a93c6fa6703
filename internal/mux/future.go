package mux

import (
	"context"
	"sync"
)

// Future 是一次性订阅的结果，只结算一次。
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
	err     error

	// withdraw 把 Future 从等待队列中移除，已被发布取走时返回 false。
	withdraw func() bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done 在结算后关闭。
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait 等待结算；ctx 结束时 Future 退出等待队列并返回 ctx.Err()，
// 之后的发布交给队列中的下一个 Future。若发布已取走该 Future，仍返回其结果。
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, f.err
	case <-ctx.Done():
	}
	if f.withdraw != nil && !f.withdraw() {
		<-f.done
		return f.outcome, f.err
	}
	return Outcome{}, ctx.Err()
}

func (f *Future) settle(outcome Outcome, err error) {
	f.once.Do(func() {
		f.outcome = outcome
		f.err = err
		close(f.done)
	})
}
