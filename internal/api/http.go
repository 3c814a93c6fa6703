package relayapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

const maxBodyBytes = 1 << 20

// HTTPHandler 实现 `/topic/:id` 邮箱接口。
type HTTPHandler struct {
	backend  Backend
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HTTPOption 自定义 HTTPHandler。
type HTTPOption func(*HTTPHandler)

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPHandler) { h.logger = l }
}

// WithCheckOrigin 设置 websocket 跨域校验，默认允许任意来源。
func WithCheckOrigin(fn func(r *http.Request) bool) HTTPOption {
	return func(h *HTTPHandler) { h.upgrader.CheckOrigin = fn }
}

// NewHTTPHandler 构造 HTTP handler。
func NewHTTPHandler(backend Backend, opts ...HTTPOption) *HTTPHandler {
	if backend == nil {
		panic("relay backend is required")
	}
	h := &HTTPHandler{
		backend: backend,
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 将路由注册到 router，prefix 形如 "/topic"。
func (h *HTTPHandler) Register(router *httprouter.Router, prefix string) {
	router.GET(prefix+"/:id", h.handleFetch)
	router.POST(prefix+"/:id", h.handleDeliver)
	router.DELETE(prefix+"/:id", h.handleClear)
	router.GET(prefix+"/:id/stream", h.handleStream)
	router.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})
}

// Router 返回已注册全部路由的 httprouter。
func (h *HTTPHandler) Router(prefix string) *httprouter.Router {
	router := httprouter.New()
	h.Register(router, prefix)
	return router
}

type errorResponse struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	RetryAfterHint string `json:"retryAfterHint,omitempty"`
}

// fetchResponse 中 message 缺省表示尚无结果。
type fetchResponse struct {
	Message json.RawMessage `json:"message,omitempty"`
}

func (h *HTTPHandler) handleFetch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	msg, ok, err := h.backend.Fetch(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	if !ok {
		h.writeJSON(w, http.StatusOK, fetchResponse{})
		return
	}
	h.writeJSON(w, http.StatusOK, fetchResponse{Message: msg})
}

func (h *HTTPHandler) handleDeliver(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "read body failed"))
		return
	}
	if err := h.backend.Deliver(r.Context(), ps.ByName("id"), body); err != nil {
		h.writeUnknownError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *HTTPHandler) handleClear(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.backend.Clear(r.Context(), ps.ByName("id")); err != nil {
		h.writeUnknownError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *HTTPHandler) writeUnknownError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierrors.FromError(err); ok {
		h.writeAPIError(w, apiErr)
		return
	}
	h.logger.Error("relay request failed", slog.Any("err", err))
	h.writeAPIError(w, apierrors.New(apierrors.Code("INTERNAL_ERROR"), "internal error"))
}

func (h *HTTPHandler) writeAPIError(w http.ResponseWriter, apiErr *apierrors.Error) {
	status := apierrors.HTTPStatus(apiErr.Code)
	if apierrors.RequiresRetryAfter(apiErr.Code) {
		if hint := apiErr.RetryAfterHint(); hint != "" {
			w.Header().Set("Retry-After", hint)
		}
	}
	resp := errorResponse{
		Code:           string(apiErr.Code),
		Message:        apiErr.Error(),
		RetryAfterHint: apiErr.RetryAfterHint(),
	}
	h.writeJSON(w, status, resp)
}
