package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Attribute keys shared by every talk-service log line.
const (
	KeyConnID       = "conn_id"
	KeyParticipant  = "participant"
	KeyConversation = "conversation"
	KeyRequestID    = "req_id"
	KeyErr          = "err"
)

func ConnID(id string) slog.Attr { return slog.String(KeyConnID, id) }

func Participant(id string) slog.Attr { return slog.String(KeyParticipant, id) }

func Conversation(id string) slog.Attr { return slog.String(KeyConversation, id) }

func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

// Err logs a nil error as an empty attr, which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyErr, err.Error())
}

// ForConn scopes the process logger to one WebSocket connection.
func ForConn(connID, participantID string) *slog.Logger {
	return L().With(ConnID(connID), Participant(participantID))
}

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "talk"
	}
	return hn + "-" + uuid.New().String()[:8]
}

func commonAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now().UTC()),
	}
}
