package httputil

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/foodfortalk/talk-service/pkg/logger"
)

// MiddlewareLogging logs method, path, status, size and duration of every
// request. Bodies are not logged: responses may carry passkeys and tokens.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &logResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		level := slog.LevelInfo
		switch {
		case lrw.status >= 500:
			level = slog.LevelError
		case lrw.status >= 400:
			level = slog.LevelWarn
		}

		logger.FromContext(r.Context()).Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"bytes", lrw.bytes,
			"duration", time.Since(start).String(),
		)
	})
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *logResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n

	return n, err
}

// Hijack lets the WebSocket upgrade pass through the middleware.
func (w *logResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}
