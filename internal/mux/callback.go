package mux

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/aegis-sign/connect/internal/topic"
	"github.com/aegis-sign/connect/pkg/apierrors"
)

const maxCallbackBody = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewCallbackHandler 返回接收 `POST {id, payload | error}` 的 handler，
// 重定向回调与推送回执可直接发布到 Multiplexer。
func NewCallbackHandler(m *Multiplexer) http.Handler {
	if m == nil {
		panic("multiplexer is required")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil || !gjson.ValidBytes(body) {
			writeError(w, http.StatusBadRequest, apierrors.New(apierrors.CodeInvalidArgument, "invalid JSON body"))
			return
		}
		resp, err := decodeCallback(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
			return
		}
		if err := m.Publish(r.Context(), resp); err != nil {
			apiErr, _ := apierrors.FromError(err)
			writeError(w, apierrors.HTTPStatus(apiErr.Code), apiErr)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func decodeCallback(body []byte) (Response, error) {
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return Response{}, apierrors.New(apierrors.CodeInvalidArgument, "callback body must be an object")
	}
	resp := Response{ID: doc.Get("id").String()}
	if e := doc.Get("error"); e.Exists() {
		resp.Error = e.String()
		if resp.Error == "" {
			resp.Error = e.Raw
		}
		return resp, nil
	}
	payload := doc.Get("payload")
	if !payload.Exists() {
		return Response{}, apierrors.New(apierrors.CodeInvalidArgument, "payload or error is required")
	}
	resp.Payload = topic.PayloadFromJSON(json.RawMessage(payload.Raw))
	return resp, nil
}

func writeError(w http.ResponseWriter, status int, apiErr *apierrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: string(apiErr.Code), Message: apiErr.Error()})
}
