package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	cfg Config
	srv *http.Server
}

func NewServer(cfg Config, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Run serves until ctx is done, then shuts down gracefully. onShutdown runs
// first so hijacked connections (WebSockets) can be closed.
func (s *Server) Run(ctx context.Context, onShutdown func()) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		if onShutdown != nil {
			onShutdown()
		}
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
