package domain

import (
	"sort"
	"strings"
)

const ConversationSeparator = "-"

// ConversationID derives the private thread key for a pair of participants.
// The result does not depend on argument order.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ConversationSeparator)
}

// ParseConversationID splits a conversation id back into its sorted pair.
func ParseConversationID(id string) (string, string, error) {
	parts := strings.Split(id, ConversationSeparator)
	if len(parts) != 2 {
		return "", "", ErrInvalidConversation
	}
	a, b := parts[0], parts[1]
	if ValidateParticipantID(a) != nil || ValidateParticipantID(b) != nil || a > b {
		return "", "", ErrInvalidConversation
	}
	return a, b, nil
}

// IsConversationMember reports whether participantID is one side of the conversation.
func IsConversationMember(conversationID, participantID string) bool {
	a, b, err := ParseConversationID(conversationID)
	if err != nil {
		return false
	}
	return participantID == a || participantID == b
}

// Peer returns the other side of the conversation for participantID.
func Peer(conversationID, participantID string) (string, error) {
	a, b, err := ParseConversationID(conversationID)
	if err != nil {
		return "", err
	}
	switch participantID {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", ErrNotConversationMember
	}
}
