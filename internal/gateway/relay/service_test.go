package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, cfg Config, store Store) (*Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	svc := NewService(cfg, store, WithClock(clock.Now))
	t.Cleanup(func() { _ = svc.Close() })
	return svc, clock
}

func TestDeliverFirstWriteWins(t *testing.T) {
	svc, _ := newTestService(t, Config{}, nil)
	ctx := context.Background()

	_, ok, err := svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"0xabc"}`)))
	err = svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"0xdef"}`))
	require.True(t, apierrors.HasCode(err, apierrors.CodeConflict))

	msg, ok, err := svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"tx":"0xabc"}`, string(msg))

	require.NoError(t, svc.Clear(ctx, "topic-1"))
	require.NoError(t, svc.Clear(ctx, "topic-1"))
	_, ok, err = svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.requests.WithLabelValues("deliver", "CONFLICT")))
}

func TestDeliverValidation(t *testing.T) {
	svc, _ := newTestService(t, Config{MaxMessageBytes: 32}, nil)
	ctx := context.Background()

	err := svc.Deliver(ctx, "bad/id", json.RawMessage(`{}`))
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))
	err = svc.Deliver(ctx, "topic-1", json.RawMessage(`"0xabc"`))
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))
	err = svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"`+string(make([]byte, 40))+`"}`))
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))
	_, _, err = svc.Fetch(ctx, "")
	require.True(t, apierrors.HasCode(err, apierrors.CodeInvalidArgument))
}

func TestMailboxExpiresAfterTTL(t *testing.T) {
	svc, clock := newTestService(t, Config{TTL: time.Minute}, nil)
	ctx := context.Background()
	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"0x1"}`)))

	clock.Advance(2 * time.Minute)
	_, ok, err := svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"0x2"}`)))
	msg, ok, err := svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"tx":"0x2"}`, string(msg))
}

func TestSweepRemovesExpired(t *testing.T) {
	svc, clock := newTestService(t, Config{TTL: time.Minute}, nil)
	ctx := context.Background()
	require.NoError(t, svc.Deliver(ctx, "old", json.RawMessage(`{"a":1}`)))
	clock.Advance(90 * time.Second)
	require.NoError(t, svc.Deliver(ctx, "fresh", json.RawMessage(`{"a":2}`)))

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, ok, _ := svc.Fetch(ctx, "fresh")
	require.True(t, ok)
	require.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.expired))
}

func TestDeliverRateLimitedPerTopic(t *testing.T) {
	svc, clock := newTestService(t, Config{DeliverRate: 1, DeliverBurst: 1}, nil)
	ctx := context.Background()
	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"a":1}`)))
	require.NoError(t, svc.Clear(ctx, "topic-1"))

	err := svc.Deliver(ctx, "topic-1", json.RawMessage(`{"a":2}`))
	apiErr, ok := apierrors.FromError(err)
	require.True(t, ok)
	require.Equal(t, apierrors.CodeRetryLater, apiErr.Code)
	require.Equal(t, "1", apiErr.RetryAfterHint())

	require.NoError(t, svc.Deliver(ctx, "topic-2", json.RawMessage(`{"a":1}`)))
	clock.Advance(time.Second)
	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"a":3}`)))
}

func TestWatchReturnsExistingMessage(t *testing.T) {
	svc, _ := newTestService(t, Config{}, nil)
	ctx := context.Background()
	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"tx":"0x1"}`)))

	msg, err := svc.Watch(ctx, "topic-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"tx":"0x1"}`, string(msg))
	kept, ok, err := svc.Fetch(ctx, "topic-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"tx":"0x1"}`, string(kept))
}

func TestWatchWaitsForDelivery(t *testing.T) {
	svc, _ := newTestService(t, Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan json.RawMessage, 1)
	go func() {
		msg, err := svc.Watch(ctx, "topic-1")
		if err == nil {
			done <- msg
		}
	}()
	require.Eventually(t, func() bool { return svc.Watchers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Deliver(ctx, "topic-1", json.RawMessage(`{"error":"denied"}`)))

	select {
	case msg := <-done:
		require.JSONEq(t, `{"error":"denied"}`, string(msg))
	case <-ctx.Done():
		t.Fatal("watch did not return")
	}
	require.Eventually(t, func() bool { return svc.Watchers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWatchHonorsContext(t *testing.T) {
	svc, _ := newTestService(t, Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Watch(ctx, "topic-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RELAY_TTL", "30s")
	t.Setenv("RELAY_DELIVER_RATE", "5")
	t.Setenv("RELAY_SQLITE_PATH", "/tmp/relay.db")
	cfg := LoadConfigFromEnv()
	require.Equal(t, 30*time.Second, cfg.TTL)
	require.Equal(t, 5.0, cfg.DeliverRate)
	require.Equal(t, "/tmp/relay.db", cfg.SQLitePath)
}
