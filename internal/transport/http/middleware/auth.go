package httpmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/security"
	"github.com/foodfortalk/talk-service/pkg/httputil"
)

type ctxKey string

const ctxKeyParticipant ctxKey = "participant"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Participant, error)
}

// ParticipantAuth requires "Authorization: Bearer <access token>" of an
// active participant and stores the participant in the request context.
func ParticipantAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
				return
			}
			p, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrParticipantInactive):
				httputil.Error(w, http.StatusForbidden, "inactive", "participant is inactive")
				return
			case errors.Is(err, domain.ErrStoreUnavailable):
				httputil.Error(w, http.StatusServiceUnavailable, "store_unavailable", "directory unavailable")
				return
			default:
				httputil.Error(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyParticipant, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth requires the configured admin token as a bearer token.
func AdminAuth(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok || adminToken == "" || !security.EqualSecret(token, adminToken) {
				httputil.Error(w, http.StatusUnauthorized, "unauthenticated", "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) <= 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}

func ParticipantFromCtx(ctx context.Context) (domain.Participant, bool) {
	p, ok := ctx.Value(ctxKeyParticipant).(domain.Participant)
	return p, ok
}
