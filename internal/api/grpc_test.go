package relayapi

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/aegis-sign/connect/internal/gateway/relay"
)

func newGRPCTestClient(t *testing.T) *GRPCClient {
	t.Helper()
	svc := relay.NewService(relay.Config{}, nil)
	t.Cleanup(func() { _ = svc.Close() })

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRelayServer(srv, NewGRPCServer(svc))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewGRPCClient(conn)
}

func TestGRPCMailboxLifecycle(t *testing.T) {
	client := newGRPCTestClient(t)
	ctx := context.Background()

	_, ok, err := client.Fetch(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Deliver(ctx, "abc", json.RawMessage(`{"typedDataSig":"0xdead","extra":{"n":1}}`)))

	msg, ok, err := client.Fetch(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"typedDataSig":"0xdead","extra":{"n":1}}`, string(msg))

	require.NoError(t, client.Clear(ctx, "abc"))
	_, ok, err = client.Fetch(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGRPCDeliverConflictMapsToAlreadyExists(t *testing.T) {
	client := newGRPCTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Deliver(ctx, "abc", json.RawMessage(`{"tx":"0x01"}`)))
	err := client.Deliver(ctx, "abc", json.RawMessage(`{"tx":"0x02"}`))
	require.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPCInvalidTopicID(t *testing.T) {
	client := newGRPCTestClient(t)

	_, _, err := client.Fetch(context.Background(), "bad id")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
