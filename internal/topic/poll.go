package topic

import (
	"context"
	"log/slog"
	"time"
)

// RelayClient 是桌面端轮询所需的 relay 读写能力。
type RelayClient interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

func (f *Factory) startPolling(t *Topic) {
	ctx, cancel := context.WithCancel(context.Background())
	t.addTeardown(cancel)
	go f.poll(ctx, t)
}

// poll 按固定间隔读取 relay；结算后不再安排新的读取。
func (f *Factory) poll(ctx context.Context, t *Topic) {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if t.Cancelled() {
			t.reject(ErrCancelled)
			return
		}
		if f.pollOnce(ctx, t) {
			return
		}
	}
}

func (f *Factory) pollOnce(ctx context.Context, t *Topic) bool {
	f.metrics.incRelayRead()
	body, err := f.relay.Get(ctx, t.URL)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		f.logger.Warn("relay poll failed", slog.String("topic", t.ID), slog.Any("err", err))
		t.reject(err)
		return true
	}
	verdict, payload, err := evaluateMessage(t.Name, body)
	if verdict == verdictPending {
		return false
	}
	if t.Cancelled() {
		t.reject(ErrCancelled)
		return true
	}
	if verdict == verdictRejected {
		t.reject(err)
		return true
	}
	if t.resolve(payload) {
		go f.cleanup(t)
	}
	return true
}

// cleanup 尽力删除 relay 上的结果；失败只记录日志，不影响已结算的 Topic。
func (f *Factory) cleanup(t *Topic) {
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.CleanupTimeout)
	defer cancel()
	if err := f.relay.Delete(ctx, t.URL); err != nil {
		f.metrics.incCleanupFailure()
		f.logger.Warn("relay cleanup failed", slog.String("topic", t.ID), slog.Any("err", err))
	}
}
