package provider

import (
	"io"
	"net/http"
)

const maxRequestBody = 4 << 20

// NewHTTPHandler 以 HTTP POST 暴露 Subprovider 的 JSON-RPC 接口。
func NewHTTPHandler(s *Subprovider) http.Handler {
	if s == nil {
		panic("subprovider is required")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.ServeJSON(r.Context(), body))
	})
}
