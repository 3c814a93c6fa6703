package mux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/connect/internal/topic"
	"github.com/aegis-sign/connect/pkg/apierrors"
)

func TestCallbackHandlerPublishesPayload(t *testing.T) {
	m := New()
	future := m.Subscribe("req-1")
	handler := NewCallbackHandler(m)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{"id":"req-1","payload":{"tx":"0xabc"}}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	out, err := waitFuture(t, future)
	require.NoError(t, err)
	require.Equal(t, topic.KindRaw, out.Payload.Kind)
	require.JSONEq(t, `{"tx":"0xabc"}`, string(out.Payload.Raw))
}

func TestCallbackHandlerPublishesError(t *testing.T) {
	m := New()
	future := m.Subscribe("req-1")
	rec := httptest.NewRecorder()
	NewCallbackHandler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{"id":"req-1","error":"denied","payload":"0x1"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	_, err := future.Wait(context.Background())
	require.True(t, apierrors.HasCode(err, apierrors.CodeRemote))
	require.Equal(t, "denied", err.Error())
}

func TestCallbackHandlerRejectsBadRequests(t *testing.T) {
	handler := NewCallbackHandler(New())
	cases := []struct {
		name   string
		method string
		body   string
		status int
		code   string
	}{
		{name: "method", method: http.MethodGet, status: http.StatusMethodNotAllowed, code: "INVALID_ARGUMENT"},
		{name: "invalid json", method: http.MethodPost, body: `{`, status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "no payload", method: http.MethodPost, body: `{"id":"x"}`, status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "missing id", method: http.MethodPost, body: `{"payload":"0x1"}`, status: http.StatusBadRequest, code: "MISSING_ID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tc.method, "/callback", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), tc.code)
		})
	}
}
