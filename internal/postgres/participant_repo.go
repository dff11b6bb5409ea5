package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// ParticipantRepo is the participant directory backed by the participants
// and profile_views tables.
type ParticipantRepo struct {
	q querier
}

func NewParticipantRepo(q querier) *ParticipantRepo {
	return &ParticipantRepo{q: q}
}

func (r *ParticipantRepo) Create(ctx context.Context, p *domain.Participant, passkeyHash string) error {
	if err := domain.ValidateParticipantID(p.ID); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	_, err := r.q.Exec(ctx, QueryCreateParticipant,
		p.ID,
		strings.TrimSpace(p.DisplayName),
		p.Active,
		toNullString(passkeyHash),
		p.CreatedAt,
	)
	return mapPgError(err)
}

func (r *ParticipantRepo) Get(ctx context.Context, id string) (*domain.Participant, error) {
	var p domain.Participant
	err := r.q.QueryRow(ctx, QueryGetParticipant, id).Scan(
		&p.ID,
		&p.DisplayName,
		&p.Active,
		&p.AssignedAgentID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, mapPgError(err)
	}
	return &p, nil
}

func (r *ParticipantRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, QuerySetParticipantActive, id, active)
}

// SetAgent assigns an agent; a nil agentID unassigns.
func (r *ParticipantRepo) SetAgent(ctx context.Context, id string, agentID *string) error {
	return r.update(ctx, QuerySetParticipantAgent, id, agentID)
}

func (r *ParticipantRepo) SetPasskeyHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, QuerySetPasskeyHash, id, hash)
}

func (r *ParticipantRepo) RecordProfileView(ctx context.Context, viewerID, viewedID string, at time.Time) error {
	_, err := r.q.Exec(ctx, QueryRecordProfileView, viewerID, viewedID, at)
	return mapPgError(err)
}

func (r *ParticipantRepo) update(ctx context.Context, sql, id string, value any) error {
	tag, err := r.q.Exec(ctx, sql, id, value, time.Now().UTC())
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func toNullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
