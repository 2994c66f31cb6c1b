package grpcsrv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestServer_DisabledWithoutAddress(t *testing.T) {
	s := NewServer("", discard)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_HealthCheck(t *testing.T) {
	s := NewServer("127.0.0.1:0", discard)
	require.NoError(t, s.Start(context.Background()))

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", RelayServiceName} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}

	require.NoError(t, s.Stop(ctx))
}
