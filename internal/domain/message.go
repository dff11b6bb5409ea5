package domain

import (
	"strings"
	"time"
)

type MessageKind string

const (
	KindPublic  MessageKind = "public"
	KindPrivate MessageKind = "private"
	KindSystem  MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindPublic, KindPrivate, KindSystem:
		return true
	}
	return false
}

// Message is immutable once stored, except for the one-way unread -> read
// transition of private messages. ID is assigned by the store and is strictly
// increasing; a zero ID marks a message that was never persisted.
type Message struct {
	ID             int64       `db:"id"`
	Kind           MessageKind `db:"kind"`
	SenderID       string      `db:"sender_id"`
	SenderName     string      `db:"sender_name"`
	RecipientID    string      `db:"recipient_id"`
	RecipientName  string      `db:"recipient_name"`
	ConversationID string      `db:"conversation_id"`
	Content        string      `db:"content"`
	IsRead         bool        `db:"is_read"`
	ReadAt         *time.Time  `db:"read_at"`
	CreatedAt      time.Time   `db:"created_at"`
}

func NewPublicMessage(sender Participant, content string, now time.Time) Message {
	return Message{
		Kind:       KindPublic,
		SenderID:   sender.ID,
		SenderName: sender.Name(),
		Content:    content,
		CreatedAt:  now,
	}
}

func NewPrivateMessage(sender, recipient Participant, content string, now time.Time) Message {
	return Message{
		Kind:           KindPrivate,
		SenderID:       sender.ID,
		SenderName:     sender.Name(),
		RecipientID:    recipient.ID,
		RecipientName:  recipient.Name(),
		ConversationID: ConversationID(sender.ID, recipient.ID),
		Content:        content,
		CreatedAt:      now,
	}
}

func NewSystemMessage(content string, now time.Time) Message {
	return Message{
		Kind:      KindSystem,
		Content:   content,
		CreatedAt: now,
	}
}

// MarkRead flips the message to read. It is a no-op for read messages and
// never moves ReadAt before CreatedAt.
func (m *Message) MarkRead(at time.Time) {
	if m.Kind != KindPrivate || m.IsRead {
		return
	}
	if at.Before(m.CreatedAt) {
		at = m.CreatedAt
	}
	m.IsRead = true
	m.ReadAt = &at
}

// NormalizeContent trims content and enforces the length limit (in runes).
// maxLen <= 0 disables the limit.
func NormalizeContent(content string, maxLen int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if maxLen > 0 && len([]rune(content)) > maxLen {
		return "", ErrContentTooLong
	}
	return content, nil
}
