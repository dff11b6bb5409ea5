package protocol

import (
	"errors"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/samber/lo"
)

// Server -> client event types.
const (
	TypeSession        = "session"
	TypeWelcome        = "welcome"
	TypeHistory        = "history"
	TypePresenceList   = "presence_list"
	TypePresenceJoined = "presence_joined"
	TypePresenceLeft   = "presence_left"
	TypeDMStarted      = "dm_started"
	TypeSystem         = "system"
	TypeTyping         = "typing"
	TypeReaction       = "reaction"
	TypeError          = "error"

	// public_message and private_message reuse the client type names.
)

const ReactionSpark = "spark"

type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type UserView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type PresenceView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Connections int    `json:"connections"`
}

type MessageView struct {
	ID             int64      `json:"id"`
	Kind           string     `json:"kind"`
	SenderID       string     `json:"senderId,omitempty"`
	SenderName     string     `json:"senderName,omitempty"`
	RecipientID    string     `json:"recipientId,omitempty"`
	RecipientName  string     `json:"recipientName,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Content        string     `json:"content"`
	IsRead         *bool      `json:"isRead,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type SessionPayload struct {
	User UserView `json:"user"`
}

type MessagePayload struct {
	Message MessageView `json:"message"`
}

type HistoryPayload struct {
	Messages []MessageView `json:"messages"`
}

type PresenceListPayload struct {
	Participants []PresenceView `json:"participants"`
}

type PresenceJoinedPayload struct {
	User UserView `json:"user"`
}

type PresenceLeftPayload struct {
	UserID string `json:"userId"`
}

type PrivateMessagePayload struct {
	ConversationID string      `json:"conversationId"`
	Message        MessageView `json:"message"`
}

// DMStartedPayload names the pair but never carries message content.
type DMStartedPayload struct {
	Participants []UserView `json:"participants"`
	At           time.Time  `json:"at"`
}

type TypingPayload struct {
	Scope    domain.TypingScope `json:"scope"`
	From     string             `json:"from"`
	FromName string             `json:"fromName,omitempty"`
	IsTyping bool               `json:"isTyping"`
}

type ReactionPayload struct {
	Kind     string    `json:"kind"`
	From     string    `json:"from"`
	FromName string    `json:"fromName,omitempty"`
	At       time.Time `json:"at"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Ref       string `json:"ref,omitempty"`
}

func NewUserView(p domain.Participant) UserView {
	return UserView{ID: p.ID, DisplayName: p.Name()}
}

func NewMessageView(m domain.Message) MessageView {
	v := MessageView{
		ID:             m.ID,
		Kind:           string(m.Kind),
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		RecipientID:    m.RecipientID,
		RecipientName:  m.RecipientName,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.Kind == domain.KindPrivate {
		v.IsRead = lo.ToPtr(m.IsRead)
		if m.ReadAt != nil {
			v.ReadAt = lo.ToPtr(m.ReadAt.UTC())
		}
	}
	return v
}

func NewMessageViews(msgs []domain.Message) []MessageView {
	return lo.Map(msgs, func(m domain.Message, _ int) MessageView {
		return NewMessageView(m)
	})
}

func Session(p domain.Participant) ServerEvent {
	return ServerEvent{Type: TypeSession, Payload: SessionPayload{User: NewUserView(p)}}
}

func Welcome(m domain.Message) ServerEvent {
	return ServerEvent{Type: TypeWelcome, Payload: MessagePayload{Message: NewMessageView(m)}}
}

func History(msgs []domain.Message) ServerEvent {
	return ServerEvent{Type: TypeHistory, Payload: HistoryPayload{Messages: NewMessageViews(msgs)}}
}

func PresenceList(entries []domain.PresenceEntry) ServerEvent {
	views := lo.Map(entries, func(e domain.PresenceEntry, _ int) PresenceView {
		return PresenceView{ID: e.Participant.ID, DisplayName: e.Participant.Name(), Connections: e.Connections}
	})
	return ServerEvent{Type: TypePresenceList, Payload: PresenceListPayload{Participants: views}}
}

func PresenceJoined(p domain.Participant) ServerEvent {
	return ServerEvent{Type: TypePresenceJoined, Payload: PresenceJoinedPayload{User: NewUserView(p)}}
}

func PresenceLeft(participantID string) ServerEvent {
	return ServerEvent{Type: TypePresenceLeft, Payload: PresenceLeftPayload{UserID: participantID}}
}

func PublicMessage(m domain.Message) ServerEvent {
	return ServerEvent{Type: TypePublicMessage, Payload: MessagePayload{Message: NewMessageView(m)}}
}

func PrivateMessage(m domain.Message) ServerEvent {
	return ServerEvent{
		Type:    TypePrivateMessage,
		Payload: PrivateMessagePayload{ConversationID: m.ConversationID, Message: NewMessageView(m)},
	}
}

func DMStarted(a, b domain.Participant, at time.Time) ServerEvent {
	return ServerEvent{
		Type: TypeDMStarted,
		Payload: DMStartedPayload{
			Participants: []UserView{NewUserView(a), NewUserView(b)},
			At:           at.UTC(),
		},
	}
}

func System(m domain.Message) ServerEvent {
	return ServerEvent{Type: TypeSystem, Payload: MessagePayload{Message: NewMessageView(m)}}
}

func TypingSignal(scope domain.TypingScope, from domain.Participant, isTyping bool) ServerEvent {
	return ServerEvent{
		Type: TypeTyping,
		Payload: TypingPayload{
			Scope:    scope,
			From:     from.ID,
			FromName: from.Name(),
			IsTyping: isTyping,
		},
	}
}

func Reaction(kind string, from domain.Participant, at time.Time) ServerEvent {
	return ServerEvent{
		Type: TypeReaction,
		Payload: ReactionPayload{
			Kind:     kind,
			From:     from.ID,
			FromName: from.Name(),
			At:       at.UTC(),
		},
	}
}

// Error codes carried by error frames.
const (
	CodeEmptyContent     = "empty_content"
	CodeContentTooLong   = "content_too_long"
	CodeUnknownRecipient = "unknown_recipient"
	CodeSelfMessage      = "self_message"
	CodeInvalidPayload   = "invalid_payload"
	CodeUnknownEvent     = "unknown_event"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

// ErrorReply maps an error to an error frame for the originating connection.
// Only store outages are retryable.
func ErrorReply(err error, ref string) ServerEvent {
	code, msg, retry := classify(err)
	return ServerEvent{
		Type:    TypeError,
		Payload: ErrorPayload{Code: code, Message: msg, Retryable: retry, Ref: ref},
	}
}

// Code returns the error frame code for err.
func Code(err error) string {
	code, _, _ := classify(err)
	return code
}

func classify(err error) (code, msg string, retryable bool) {
	switch {
	case errors.Is(err, domain.ErrEmptyContent):
		return CodeEmptyContent, domain.ErrEmptyContent.Error(), false
	case errors.Is(err, domain.ErrContentTooLong):
		return CodeContentTooLong, domain.ErrContentTooLong.Error(), false
	case errors.Is(err, domain.ErrUnknownRecipient), errors.Is(err, domain.ErrInvalidParticipantID):
		return CodeUnknownRecipient, domain.ErrUnknownRecipient.Error(), false
	case errors.Is(err, domain.ErrSelfMessage):
		return CodeSelfMessage, domain.ErrSelfMessage.Error(), false
	case errors.Is(err, domain.ErrInvalidPayload):
		return CodeInvalidPayload, err.Error(), false
	case errors.Is(err, domain.ErrUnknownEvent):
		return CodeUnknownEvent, err.Error(), false
	case errors.Is(err, domain.ErrStoreUnavailable):
		return CodeStoreUnavailable, "message could not be stored, please retry", true
	default:
		return CodeInternal, "internal error", false
	}
}
