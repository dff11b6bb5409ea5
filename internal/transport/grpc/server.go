package grpcx

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key of the chat engine.
const ServiceName = "talk.v1.Talk"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

type Config struct {
	Addr       string
	ProbeEvery time.Duration
}

// Server exposes the standard gRPC health service. Serving status follows
// the probes: any failing probe turns the service NOT_SERVING.
type Server struct {
	cfg    Config
	grpc   *grpc.Server
	health *health.Server
	probes []Probe
}

func NewServer(cfg Config, probes ...Probe) *Server {
	if cfg.ProbeEvery <= 0 {
		cfg.ProbeEvery = 10 * time.Second
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{cfg: cfg, grpc: gs, health: hs, probes: probes}
}

// GRPC returns the underlying server for registering more services.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Refresh runs the probes once and publishes the result.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for _, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeEvery)
		err := p(pctx)
		cancel()
		if err != nil {
			slog.Warn("health probe failed", slog.Any("err", err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	return st
}

// Serve accepts connections on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Run listens on cfg.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.cfg.Addr, err)
	}
	slog.Info("grpc server listening", "addr", s.cfg.Addr)
	return s.Serve(ctx, lis)
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.cfg.ProbeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh(ctx)
		}
	}
}
