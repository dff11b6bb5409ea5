package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// MessageRepo is the history store on chat_messages. Ids come from a
// BIGSERIAL, so they are unique and increase with insertion order.
type MessageRepo struct {
	q querier
}

func NewMessageRepo(q querier) *MessageRepo {
	return &MessageRepo{q: q}
}

func (r *MessageRepo) AppendPublic(ctx context.Context, m *domain.Message) error {
	if m.Kind != domain.KindPublic {
		return fmt.Errorf("append public: unexpected kind %q", m.Kind)
	}
	return r.insert(ctx, r.q, m)
}

func (r *MessageRepo) AppendSystem(ctx context.Context, m *domain.Message) error {
	if m.Kind != domain.KindSystem {
		return fmt.Errorf("append system: unexpected kind %q", m.Kind)
	}
	return r.insert(ctx, r.q, m)
}

// AppendPrivate stores m and reports whether it is the first message of its
// conversation. Marker and message are written in one transaction; the
// marker insert is conditional, so concurrent first sends yield one winner.
func (r *MessageRepo) AppendPrivate(ctx context.Context, m *domain.Message) (bool, error) {
	a, b, err := domain.ParseConversationID(m.ConversationID)
	if err != nil {
		return false, err
	}

	tx, err := r.q.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, QueryInsertConversation, m.ConversationID, a, b, m.CreatedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	first := tag.RowsAffected() == 1

	if err := r.insert(ctx, tx, m); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		m.ID = 0
		return false, err
	}
	return first, nil
}

func (r *MessageRepo) insert(ctx context.Context, q querier, m *domain.Message) error {
	var id int64
	err := q.QueryRow(ctx, QueryInsertMessage,
		string(m.Kind),
		toNullString(m.SenderID),
		toNullString(m.RecipientID),
		toNullString(m.ConversationID),
		m.Content,
		m.IsRead,
		m.ReadAt,
		m.CreatedAt,
	).Scan(&id)
	if err != nil {
		return mapPgError(err)
	}
	m.ID = id
	return nil
}

// MarkRead marks every unread message addressed to readerID in the
// conversation as read and returns how many changed.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, QueryMarkRead, conversationID, readerID, at)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}

// RecentPublic returns up to limit room messages (public and system) older
// than before (0 = newest), in ascending id order.
func (r *MessageRepo) RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, QueryRecentPublic, before, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *MessageRepo) RecentPrivate(ctx context.Context, conversationID string, limit int, before int64) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, QueryRecentPrivate, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *MessageRepo) ClearPublicHistory(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, QueryClearPublic)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// scanMessages reads rows in descending id order and returns them ascending.
func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	out := make([]domain.Message, 0, 32)
	for rows.Next() {
		var (
			m    domain.Message
			kind string
		)
		if err := rows.Scan(
			&m.ID,
			&kind,
			&m.SenderID,
			&m.SenderName,
			&m.RecipientID,
			&m.RecipientName,
			&m.ConversationID,
			&m.Content,
			&m.IsRead,
			&m.ReadAt,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Kind = domain.MessageKind(kind)
		if m.SenderName == "" {
			m.SenderName = m.SenderID
		}
		if m.RecipientName == "" {
			m.RecipientName = m.RecipientID
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
