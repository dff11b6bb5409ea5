package service

import (
	"context"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/presence"
	"github.com/foodfortalk/talk-service/internal/protocol"
)

// HistoryStore is the durable message log. Appends assign m.ID; reads return
// messages in ascending id order. before = 0 reads from the newest message.
type HistoryStore interface {
	AppendPublic(ctx context.Context, m *domain.Message) error
	AppendSystem(ctx context.Context, m *domain.Message) error
	// AppendPrivate reports whether m is the first message ever stored for
	// its conversation. The check and the insert are one atomic step.
	AppendPrivate(ctx context.Context, m *domain.Message) (first bool, err error)
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
	RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error)
	RecentPrivate(ctx context.Context, conversationID string, limit int, before int64) ([]domain.Message, error)
	ClearPublicHistory(ctx context.Context) (int64, error)
}

// ParticipantStore is the participant directory.
type ParticipantStore interface {
	Create(ctx context.Context, p *domain.Participant, passkeyHash string) error
	Get(ctx context.Context, id string) (*domain.Participant, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetAgent(ctx context.Context, id string, agentID *string) error
	SetPasskeyHash(ctx context.Context, id, hash string) error
	RecordProfileView(ctx context.Context, viewerID, viewedID string, at time.Time) error
}

type TokenVerifier interface {
	Verify(token string) (participantID string, err error)
}

type TokenIssuer interface {
	Issue(participantID string, now time.Time) (string, error)
	TTL() time.Duration
}

// Presence is the part of the presence registry the services use.
type Presence interface {
	ConnectionsFor(participantID string) []presence.Conn
	Broadcast(ev protocol.ServerEvent, exceptID string) int
	SendTo(participantID string, ev protocol.ServerEvent) int
	Kick(participantID, reason string) int
	IsOnline(participantID string) bool
	Snapshot() []domain.PresenceEntry
}

// ContentFilter rewrites chat content before it is stored.
type ContentFilter interface {
	Apply(content string) string
}
