package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCallTimeout = 10 * time.Second

// UnaryServerInterceptor recovers panics, logs every call and bounds calls
// that arrive without a deadline.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			logCall(ctx, "grpc unary", info.FullMethod, start, err)
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			logCall(ss.Context(), "grpc stream", info.FullMethod, start, err)
		}()

		return handler(srv, ss)
	}
}

// logCall logs health probes at debug so polling does not flood the log.
func logCall(ctx context.Context, msg, method string, start time.Time, err error) {
	level := slog.LevelInfo
	switch {
	case err != nil && status.Code(err) == codes.Internal:
		level = slog.LevelError
	case strings.HasPrefix(method, "/grpc.health."):
		level = slog.LevelDebug
	}
	slog.Log(ctx, level, msg,
		"method", method,
		"code", status.Code(err).String(),
		"dur_ms", time.Since(start).Milliseconds())
}
