package relayapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/aegis-sign/connect/pkg/apierrors"
	"github.com/aegis-sign/connect/pkg/validator"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleStream 升级为 websocket，邮箱有消息时推送一帧 `{"message":{...}}` 后关闭。
// 帧写出成功后才清空邮箱，写失败时消息留给轮询或下一次订阅。
func (h *HTTPHandler) handleStream(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := validator.ValidateTopicID(id); err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("topic", id), slog.Any("err", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	type watchResult struct {
		frame []byte
		err   error
	}
	resultCh := make(chan watchResult, 1)
	go func() {
		msg, err := h.backend.Watch(ctx, id)
		if err != nil {
			resultCh <- watchResult{err: err}
			return
		}
		frame := append(append([]byte(`{"message":`), msg...), '}')
		resultCh <- watchResult{frame: frame}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case res := <-resultCh:
			if res.err != nil {
				closeWith(conn, websocket.CloseInternalServerErr, res.err.Error())
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, res.frame); err != nil {
				h.logger.Debug("websocket write failed", slog.String("topic", id), slog.Any("err", err))
				return
			}
			if err := h.backend.Clear(context.WithoutCancel(ctx), id); err != nil {
				h.logger.Warn("clear after stream delivery failed", slog.String("topic", id), slog.Any("err", err))
			}
			closeWith(conn, websocket.CloseNormalClosure, "delivered")
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump 处理 pong 与对端关闭；客户端不发送业务帧。
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	if len(text) > 120 {
		text = text[:120]
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
