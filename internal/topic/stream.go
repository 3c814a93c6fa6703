package topic

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// StreamConn 是 stream 策略读取的消息连接。
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// StreamDialer 打开到 relay stream 端点的连接。
type StreamDialer interface {
	Dial(ctx context.Context, url string) (StreamConn, error)
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer 基于 gorilla/websocket 构造 StreamDialer，d 为空时使用默认拨号器。
func NewWebsocketDialer(d *websocket.Dialer) StreamDialer {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return websocketDialer{dialer: d}
}

func (w websocketDialer) Dial(ctx context.Context, rawURL string) (StreamConn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, rawURL, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// StreamURL 将 relay topic URL 转换为 websocket 订阅地址。
func StreamURL(topicURL string) string {
	switch {
	case strings.HasPrefix(topicURL, "https://"):
		topicURL = "wss://" + strings.TrimPrefix(topicURL, "https://")
	case strings.HasPrefix(topicURL, "http://"):
		topicURL = "ws://" + strings.TrimPrefix(topicURL, "http://")
	}
	return topicURL + "/stream"
}

func (f *Factory) startStream(t *Topic) {
	ctx, cancel := context.WithCancel(context.Background())
	t.addTeardown(cancel)
	go f.stream(ctx, t)
}

// stream 读取 relay 推送的帧，判定规则与轮询一致；relay 投递后自行清理邮箱。
func (f *Factory) stream(ctx context.Context, t *Topic) {
	conn, err := f.dialer.Dial(ctx, StreamURL(t.URL))
	if err != nil {
		if ctx.Err() == nil {
			t.reject(apierrors.New(apierrors.CodeTransport, "relay stream dial: "+err.Error()))
		}
		return
	}
	t.addTeardown(func() { _ = conn.Close() })
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("relay stream closed", slog.String("topic", t.ID), slog.Any("err", err))
				t.reject(apierrors.New(apierrors.CodeTransport, "relay stream: "+err.Error()))
			}
			return
		}
		verdict, payload, evalErr := evaluateMessage(t.Name, body)
		if verdict == verdictPending {
			continue
		}
		if t.Cancelled() {
			t.reject(ErrCancelled)
			return
		}
		if verdict == verdictRejected {
			t.reject(evalErr)
			return
		}
		t.resolve(payload)
		return
	}
}
