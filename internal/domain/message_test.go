package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	req := require.New(t)

	got, err := NormalizeContent("  hi there \n", 10)
	req.NoError(err)
	req.Equal("hi there", got)

	_, err = NormalizeContent(" \t\n ", 10)
	req.ErrorIs(err, ErrEmptyContent)

	_, err = NormalizeContent(strings.Repeat("é", 11), 10)
	req.ErrorIs(err, ErrContentTooLong)

	got, err = NormalizeContent(strings.Repeat("x", 5000), 0)
	req.NoError(err)
	req.Len(got, 5000)
}

func TestMessage_MarkRead(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	alice := Participant{ID: "alice", DisplayName: "Alice"}
	bob := Participant{ID: "bob"}

	m := NewPrivateMessage(alice, bob, "hey", now)
	req.Equal("alice-bob", m.ConversationID)
	req.Equal("bob", m.RecipientName)
	req.False(m.IsRead)

	// readAt never precedes creation
	m.MarkRead(now.Add(-time.Minute))
	req.True(m.IsRead)
	req.Equal(now, *m.ReadAt)

	// one-way transition
	m.MarkRead(now.Add(time.Hour))
	req.Equal(now, *m.ReadAt)

	pub := NewPublicMessage(alice, "hi", now)
	pub.MarkRead(now)
	req.False(pub.IsRead)
	req.Nil(pub.ReadAt)
}
