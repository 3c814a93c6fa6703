package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	count   atomic.Int64
	release chan struct{}
	err     error
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(ctx context.Context, msg Message) error {
	s.count.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubSender) CallCount() int64 {
	return s.count.Load()
}

func testMessage(topic string) Message {
	return Message{TopicID: topic, URI: "aegis:me", PushToken: "push-token"}
}

func TestDispatcherDedupPerTopic(t *testing.T) {
	sender := &stubSender{release: make(chan struct{})}
	d, err := NewDispatcher(Config{MaxQueue: 4, Workers: 1, Metrics: NewMetrics(prometheus.NewRegistry())}, sender, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, d.Enqueue(context.Background(), testMessage("t1")))
	require.NoError(t, d.Enqueue(context.Background(), testMessage("t1")))
	close(sender.release)

	require.Eventually(t, func() bool { return sender.CallCount() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(1), sender.CallCount())
}

func TestDispatcherSendsOnceWithoutRetry(t *testing.T) {
	sender := &stubSender{err: errors.New("unreachable")}
	metrics := NewMetrics(prometheus.NewRegistry())
	var mu sync.Mutex
	var results []Result
	d, err := NewDispatcher(Config{Workers: 1, Metrics: metrics}, sender, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, d.Enqueue(context.Background(), testMessage("t-fail")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.EqualError(t, results[0].Err, "unreachable")
	require.Equal(t, "t-fail", results[0].Message.TopicID)
	mu.Unlock()
	require.Equal(t, int64(1), sender.CallCount())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.sent.WithLabelValues("stub", "error")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.queueDepth))
}

func TestDispatcherRateLimit(t *testing.T) {
	sender := &stubSender{}
	metrics := NewMetrics(prometheus.NewRegistry())
	d, err := NewDispatcher(Config{MaxQueue: 2, Workers: 1, RateLimit: 1, Metrics: metrics}, sender, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, d.Enqueue(context.Background(), testMessage("t-rate")))
	err = d.Enqueue(context.Background(), testMessage("t-rate-2"))
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.rejected.WithLabelValues("rate_limited")))
}

func TestDispatcherQueueFull(t *testing.T) {
	sender := &stubSender{release: make(chan struct{})}
	d, err := NewDispatcher(Config{MaxQueue: 1, Workers: 1}, sender, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		close(sender.release)
		d.Close()
	})

	require.NoError(t, d.Enqueue(context.Background(), testMessage("a")))
	require.Eventually(t, func() bool { return sender.CallCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Enqueue(context.Background(), testMessage("b")))
	require.ErrorIs(t, d.Enqueue(context.Background(), testMessage("c")), ErrQueueFull)
}

func TestDispatcherValidatesMessage(t *testing.T) {
	d, err := NewDispatcher(Config{}, &stubSender{}, nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.Error(t, d.Enqueue(context.Background(), Message{PushToken: "x"}))
	require.Error(t, d.Enqueue(context.Background(), Message{TopicID: "x"}))

	_, err = NewDispatcher(Config{}, nil, nil)
	require.Error(t, err)
}

func TestDispatcherClosed(t *testing.T) {
	d, err := NewDispatcher(Config{}, &stubSender{}, nil)
	require.NoError(t, err)
	d.Close()
	d.Close()
	require.ErrorIs(t, d.Enqueue(context.Background(), testMessage("late")), ErrClosed)
}
