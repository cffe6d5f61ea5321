package httpapi_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/smartport-kiosk/smartport/internal/bus"
	"github.com/smartport-kiosk/smartport/internal/httpapi"
)

const bufSize = 1024 * 1024

type flakyStore struct{ err error }

func (s *flakyStore) Ping(context.Context) error { return s.err }

type readerStatus bool

func (r readerStatus) Available() bool { return bool(r) }

func startBufGRPC(t *testing.T, h *httpapi.GRPCHealth) healthpb.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	h.Register(server)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		server.GracefulStop()
		_ = conn.Close()
		_ = listener.Close()
	})
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCHealth_ReportsProbes(t *testing.T) {
	st := &flakyStore{}
	conn := bus.NewConnState("tcp://broker:1883")
	h := httpapi.NewGRPCHealth(httpapi.Probes{Store: st, Bus: conn, Reader: readerStatus(true)})
	client := startBufGRPC(t, h)

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, httpapi.HealthOverall))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, httpapi.HealthStore))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, httpapi.HealthBus))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, httpapi.HealthReader))

	conn.SetConnected()
	st.err = errors.New("database is locked")
	h.Refresh(context.Background())

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, httpapi.HealthOverall))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, httpapi.HealthStore))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, httpapi.HealthBus))
}

func TestGRPCHealth_RunShutsDownOnCancel(t *testing.T) {
	h := httpapi.NewGRPCHealth(httpapi.Probes{Store: &flakyStore{}})
	client := startBufGRPC(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, httpapi.HealthOverall))
	cancel()
	<-done
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, httpapi.HealthOverall))
}
