package http

import (
	"errors"
	"net/http"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/protocol"
	"github.com/foodfortalk/talk-service/pkg/httputil"
)

// toHTTP maps a service error to a status code.
func toHTTP(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidParticipantID),
		errors.Is(err, domain.ErrInvalidConversation),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong),
		errors.Is(err, domain.ErrSelfMessage),
		errors.Is(err, ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotConversationMember),
		errors.Is(err, domain.ErrParticipantInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrUnknownRecipient):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrParticipantExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCursor):
		return "invalid_cursor"
	case errors.Is(err, domain.ErrInvalidConversation):
		return "invalid_conversation"
	case errors.Is(err, domain.ErrNotConversationMember):
		return "not_a_member"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrParticipantExists):
		return "conflict"
	case errors.Is(err, domain.ErrParticipantInactive):
		return "inactive"
	case errors.Is(err, domain.ErrInvalidParticipantID):
		return "invalid_participant_id"
	default:
		return protocol.Code(err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := toHTTP(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	httputil.Error(w, status, errorCode(err), msg)
}
