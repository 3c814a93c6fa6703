package topic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

func TestPollResolvesOnThirdTick(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{}`, `{}`, `{"message":{"access_token":"0xabc"}}`}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "access_token")
	require.NoError(t, err)
	require.Equal(t, "http://relay.test/topic/"+tp.ID, tp.URL)

	payload, err := waitTopic(t, tp)
	require.NoError(t, err)
	require.Equal(t, KindRaw, payload.Kind)
	require.Equal(t, "0xabc", payload.String())

	require.Eventually(t, func() bool { return relay.Deletes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 3, relay.Reads())
	require.Equal(t, 1, relay.Deletes())
	require.Equal(t, []string{tp.URL}, relay.DeletedURLs())
}

func TestPollRemoteErrorStopsWithoutCleanup(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{"message":{"error":"denied"}}`}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)

	_, err = waitTopic(t, tp)
	require.Error(t, err)
	require.True(t, apierrors.HasCode(err, apierrors.CodeRemote))
	require.Equal(t, "denied", err.Error())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, relay.Reads())
	require.Equal(t, 0, relay.Deletes())
}

func TestPollTransportErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("connection refused")
	relay := &scriptedRelay{getErr: boom}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)

	_, err = waitTopic(t, tp)
	require.ErrorIs(t, err, boom)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, relay.Reads())
}

func TestPollInvalidBodyRejects(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`<html>`}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)

	_, err = waitTopic(t, tp)
	require.ErrorIs(t, err, ErrInvalidRelayResponse)
}

func TestPollTreatsEmptyErrorAsAbsent(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{
		`{"message":{"error":""}}`,
		`{"message":{"error":null}}`,
		`{"message":{"error":false,"access_token":"0xabc"}}`,
	}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "access_token")
	require.NoError(t, err)

	payload, err := waitTopic(t, tp)
	require.NoError(t, err)
	require.Equal(t, "0xabc", payload.String())
	require.Equal(t, 3, relay.Reads())
}

func TestPollIgnoresOtherFields(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{"message":{"other":"x"}}`, `{"message":{"tx":{"hash":"0x1"}}}`}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)

	payload, err := waitTopic(t, tp)
	require.NoError(t, err)
	require.JSONEq(t, `{"hash":"0x1"}`, string(payload.Raw))
	require.Equal(t, 2, relay.Reads())
}

func TestPollCleanupFailureIsSwallowed(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{"message":{"tx":"0xfeed"}}`}, deleteErr: errors.New("gone")}
	reg := prometheus.NewRegistry()
	factory, err := NewFactory(Config{
		RelayBase:    "http://relay.test/topic",
		PollInterval: 5 * time.Millisecond,
		Metrics:      NewMetrics(reg),
	}, WithRelayClient(relay))
	require.NoError(t, err)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)

	payload, err := waitTopic(t, tp)
	require.NoError(t, err)
	require.Equal(t, "0xfeed", payload.String())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(factory.metrics.cleanupFailure) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(factory.metrics.settled.WithLabelValues("poll", "resolved")) == 1 &&
			testutil.ToFloat64(factory.metrics.pending) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCancelBeforeTickRejectsWithoutReads(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{"message":{"tx":"0x1"}}`}}
	factory, err := NewFactory(Config{RelayBase: "http://relay.test/topic/", PollInterval: 40 * time.Millisecond}, WithRelayClient(relay))
	require.NoError(t, err)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)
	tp.Cancel()

	_, err = waitTopic(t, tp)
	require.ErrorIs(t, err, ErrCancelled)
	require.True(t, tp.Cancelled())

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, relay.Reads())
}

func TestContextCancellationCancelsTopic(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{}`}}
	factory := newPollFactory(t, relay)

	ctx, cancel := context.WithCancel(context.Background())
	tp, err := factory.CreateTopic(ctx, "tx")
	require.NoError(t, err)
	cancel()

	_, err = waitTopic(t, tp)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestSingleSettlement(t *testing.T) {
	relay := &scriptedRelay{bodies: []string{`{"message":{"tx":"0x1"}}`}}
	factory := newPollFactory(t, relay)

	tp, err := factory.CreateTopic(context.Background(), "tx")
	require.NoError(t, err)
	first, err := waitTopic(t, tp)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.False(t, tp.resolve(PayloadFromString(fmt.Sprintf("0x%d", i+2))))
		require.False(t, tp.reject(errors.New("late")))
	}
	tp.Cancel()

	payload, err, ok := tp.Result()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, first, payload)
}

func TestCreateTopicRequiresName(t *testing.T) {
	factory := newPollFactory(t, &scriptedRelay{})
	_, err := factory.CreateTopic(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestNewFactoryRequiresCapabilities(t *testing.T) {
	_, err := NewFactory(Config{})
	require.Error(t, err)
	_, err = NewFactory(Config{IsOnMobile: true})
	require.Error(t, err)
}

func TestTeardownRunsOnceAfterSettlement(t *testing.T) {
	tp := newTopic("id", "tx", "u")
	var calls int
	tp.addTeardown(func() { calls++ })
	tp.resolve(PayloadFromString("x"))
	tp.reject(errors.New("late"))
	require.Equal(t, 1, calls)

	tp.addTeardown(func() { calls++ })
	require.Equal(t, 2, calls)
}

func newPollFactory(t *testing.T, relay RelayClient) *Factory {
	t.Helper()
	factory, err := NewFactory(Config{RelayBase: "http://relay.test/topic/", PollInterval: 5 * time.Millisecond}, WithRelayClient(relay))
	require.NoError(t, err)
	require.Equal(t, StrategyPoll, factory.Strategy())
	return factory
}

func waitTopic(t *testing.T, tp *Topic) (Payload, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := tp.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return payload, err
}

type scriptedRelay struct {
	mu        sync.Mutex
	bodies    []string
	getErr    error
	deleteErr error
	reads     int
	deleted   []string
}

func (s *scriptedRelay) Get(_ context.Context, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if len(s.bodies) == 0 {
		return []byte(`{}`), nil
	}
	idx := s.reads - 1
	if idx >= len(s.bodies) {
		idx = len(s.bodies) - 1
	}
	return []byte(s.bodies[idx]), nil
}

func (s *scriptedRelay) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, url)
	return s.deleteErr
}

func (s *scriptedRelay) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *scriptedRelay) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deleted)
}

func (s *scriptedRelay) DeletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
