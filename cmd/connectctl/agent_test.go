package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sign/connect/internal/connect"
	"github.com/aegis-sign/connect/internal/topic"
)

func TestResolveCallback(t *testing.T) {
	got, err := resolveCallback("http://localhost:8081/topic/abc")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8081/topic/abc", got)

	got, err = resolveCallback("aegis:me?callback_url=http%3A%2F%2Frelay%2Ftopic%2Fxyz")
	require.NoError(t, err)
	require.Equal(t, "http://relay/topic/xyz", got)

	_, err = resolveCallback("aegis:me")
	require.Error(t, err)
}

func TestServeMountsFragmentInMobileMode(t *testing.T) {
	t.Setenv("CONNECT_MOBILE", "true")
	reg := prometheus.NewRegistry()
	client, err := newClient(context.Background(), &cobra.Command{}, "http://127.0.0.1:8545"+fragmentPath, connect.WithRegisterer(reg))
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, topic.StrategyHashWatch, client.Strategy())
	require.Equal(t, "http://127.0.0.1:8545/fragment", client.AppURL())

	rec := httptest.NewRecorder()
	newServeMux(client, reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fragment?access_token=0xabc", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServeFragmentListensOnAppURL(t *testing.T) {
	t.Setenv("CONNECT_MOBILE", "true")
	t.Setenv("CONNECT_APP_URL", "http://127.0.0.1:0/fragment")
	client, err := newClient(context.Background(), &cobra.Command{}, "")
	require.NoError(t, err)
	defer client.Close()

	stop, err := serveFragment(client, newLogger())
	require.NoError(t, err)
	stop()

	t.Setenv("CONNECT_MOBILE", "false")
	desktop, err := newClient(context.Background(), &cobra.Command{}, "")
	require.NoError(t, err)
	defer desktop.Close()
	stop, err = serveFragment(desktop, newLogger())
	require.NoError(t, err)
	stop()
}
