package domain

import "errors"

var (
	ErrEmptyContent          = errors.New("message content is empty")
	ErrContentTooLong        = errors.New("message content is too long")
	ErrUnknownRecipient      = errors.New("unknown recipient")
	ErrSelfMessage           = errors.New("cannot send a private message to yourself")
	ErrInvalidPayload        = errors.New("invalid payload")
	ErrUnknownEvent          = errors.New("unknown event type")
	ErrStoreUnavailable      = errors.New("message store unavailable")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrParticipantInactive   = errors.New("participant is inactive")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrParticipantExists     = errors.New("participant already exists")
	ErrInvalidParticipantID  = errors.New("invalid participant id")
	ErrNotConversationMember = errors.New("not a member of the conversation")
	ErrInvalidConversation   = errors.New("invalid conversation id")
)
