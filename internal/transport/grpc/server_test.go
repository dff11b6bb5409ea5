package grpcx

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthFollowsProbes(t *testing.T) {
	req := require.New(t)

	var failing atomic.Bool
	probe := func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}
	srv := NewServer(Config{ProbeEvery: time.Hour}, probe)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	req.Eventually(func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	failing.Store(true)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, srv.Refresh(context.Background()))

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	req.Equal(codes.NotFound, status.Code(err))
}

func TestUnaryInterceptorRecovers(t *testing.T) {
	req := require.New(t)
	icpt := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/talk.v1.Talk/Boom"}

	_, err := icpt(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	req.Equal(codes.Internal, status.Code(err))

	var hadDeadline bool
	resp, err := icpt(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		_, hadDeadline = ctx.Deadline()
		return "ok", nil
	})
	req.NoError(err)
	req.Equal("ok", resp)
	req.True(hadDeadline)
}
