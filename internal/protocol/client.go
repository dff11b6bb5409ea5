package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Client -> server event types.
const (
	TypePublicMessage  = "public_message"
	TypePrivateMessage = "private_message"
	TypeTypingStart    = "typing_start"
	TypeTypingStop     = "typing_stop"
	TypeSpark          = "spark"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ClientEvent is the closed set of events a client may send. Only types in
// this package implement it.
type ClientEvent interface {
	Type() string
	clientEvent()
}

type SendPublic struct {
	Content string `json:"content"`
}

type SendPrivate struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content"`
}

// Typing covers both typing_start and typing_stop; Start tells them apart.
type Typing struct {
	Scope domain.TypingScope `json:"scope" validate:"required,oneof=public private"`
	To    string             `json:"to" validate:"required_if=Scope private"`
	Start bool               `json:"-"`
}

type Spark struct{}

func (SendPublic) Type() string  { return TypePublicMessage }
func (SendPrivate) Type() string { return TypePrivateMessage }
func (Spark) Type() string       { return TypeSpark }
func (t Typing) Type() string {
	if t.Start {
		return TypeTypingStart
	}
	return TypeTypingStop
}

func (SendPublic) clientEvent()  {}
func (SendPrivate) clientEvent() {}
func (Typing) clientEvent()      {}
func (Spark) clientEvent()       {}

type envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame is one decoded inbound frame. Ref is the optional client correlation
// id and is set whenever the envelope itself could be parsed.
type Frame struct {
	Ref   string
	Event ClientEvent
}

// Decode parses and validates one inbound frame. Errors wrap
// domain.ErrInvalidPayload or domain.ErrUnknownEvent.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	f := Frame{Ref: env.Ref}

	var (
		ev  ClientEvent
		err error
	)
	switch env.Type {
	case TypePublicMessage:
		ev, err = decodePayload[SendPublic](env.Payload)
	case TypePrivateMessage:
		ev, err = decodePayload[SendPrivate](env.Payload)
	case TypeTypingStart, TypeTypingStop:
		var t Typing
		t, err = decodePayload[Typing](env.Payload)
		t.Start = env.Type == TypeTypingStart
		ev = t
	case TypeSpark:
		ev = Spark{}
	default:
		return f, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Type)
	}
	if err != nil {
		return f, err
	}
	f.Event = ev
	return f, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return v, nil
}
