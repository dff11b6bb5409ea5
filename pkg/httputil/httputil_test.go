package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestIDPropagates(t *testing.T) {
	req := require.New(t)

	var seen string
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	req.Equal("abc-123", seen)
	req.Equal("abc-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	req.NotEmpty(seen)
	req.NotEqual("abc-123", seen)
	req.Equal(seen, w.Header().Get(HeaderRequestID))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "bad id\n")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	req.NotEqual("bad id\n", seen)
	req.Equal(seen, w.Header().Get(HeaderRequestID))
}

func TestLoggingKeepsStatus(t *testing.T) {
	h := MiddlewareLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusTeapot, "teapot", "short and stout")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusTeapot, w.Code)
	require.JSONEq(t, `{"error":{"code":"teapot","message":"short and stout"}}`, w.Body.String())
}
