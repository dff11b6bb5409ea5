package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// Init builds the process logger and installs it as the slog default.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "talk-service"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	base := slog.New(h.WithAttrs(commonAttrs(cfg)))
	slog.SetDefault(base)

	mu.Lock()
	def = base
	mu.Unlock()
	return base
}

// L returns the process logger, initialising a default one if needed.
func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(Config{})
}

type ctxKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the process logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return L()
}
