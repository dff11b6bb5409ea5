package domain

import (
	"strings"
	"time"
)

const maxParticipantIDLen = 64

type Participant struct {
	ID              string    `db:"id"`
	DisplayName     string    `db:"display_name"`
	Active          bool      `db:"is_active"`
	AssignedAgentID *string   `db:"assigned_agent_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ValidateParticipantID checks that id can take part in a conversation id
// and in storage keys: ASCII letters, digits, "_" and "." only. The
// conversation separator "-" and key delimiters such as ":" are excluded.
func ValidateParticipantID(id string) error {
	if id == "" || len(id) > maxParticipantIDLen {
		return ErrInvalidParticipantID
	}
	for i := 0; i < len(id); i++ {
		if !participantIDChar(id[i]) {
			return ErrInvalidParticipantID
		}
	}
	return nil
}

func participantIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.':
		return true
	}
	return false
}

// Name returns the display name, falling back to the id.
func (p Participant) Name() string {
	if n := strings.TrimSpace(p.DisplayName); n != "" {
		return n
	}
	return p.ID
}
