package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type reqIDKey struct{}

// WithRequestID stores the request id in ctx and scopes the ctx logger to it.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, reqIDKey{}, id)
	return WithLogger(ctx, FromContext(ctx).With(RequestID(id)))
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(reqIDKey{}).(string)
	return v, ok && v != ""
}

// AttrsFromCtx returns the request id and trace_id/span_id attrs ctx carries.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	if id, ok := RequestIDFrom(ctx); ok {
		out = append(out, RequestID(id))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		out = append(out,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return out
}

// Args converts attrs into variadic slog arguments.
func Args(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
