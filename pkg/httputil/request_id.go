package httputil

import (
	"context"
	"net/http"

	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

// MiddlewareRequestID accepts a client X-Request-ID when it is short printable
// ASCII, otherwise issues a fresh one. The id is echoed back and the request
// context carries a logger scoped to it.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return logger.RequestIDFrom(ctx)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
