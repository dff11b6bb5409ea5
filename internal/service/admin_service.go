package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/security"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/google/uuid"
)

const deactivatedReason = "participant deactivated"

// AdminService is the administrative surface used by the admin HTTP API and
// talkctl. It writes to the directory and the history store directly.
type AdminService struct {
	participants ParticipantStore
	chat         *ChatService
	presence     Presence
	tokens       TokenIssuer
	now          func() time.Time
}

func NewAdminService(participants ParticipantStore, chat *ChatService, presence Presence, tokens TokenIssuer, now func() time.Time) *AdminService {
	if now == nil {
		now = time.Now
	}
	return &AdminService{participants: participants, chat: chat, presence: presence, tokens: tokens, now: now}
}

type CreateParticipantResult struct {
	Participant domain.Participant
	Passkey     string
}

// CreateParticipant registers an active participant. An empty id gets a
// generated one. The plaintext passkey is only returned here.
func (s *AdminService) CreateParticipant(ctx context.Context, id, displayName string) (*CreateParticipantResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := domain.ValidateParticipantID(id); err != nil {
		return nil, err
	}

	plain, hash, err := security.NewPasskey()
	if err != nil {
		return nil, fmt.Errorf("generate passkey: %w", err)
	}
	p := domain.Participant{
		ID:          id,
		DisplayName: strings.TrimSpace(displayName),
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.participants.Create(ctx, &p, hash); err != nil {
		slog.Error("admin.participant.create failed", logger.Participant(id), logger.Err(err))
		return nil, err
	}
	slog.Info("participant created", logger.Participant(id))
	return &CreateParticipantResult{Participant: p, Passkey: plain}, nil
}

func (s *AdminService) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	return s.participants.Get(ctx, id)
}

// ClearPublicHistory irreversibly deletes the public room history.
func (s *AdminService) ClearPublicHistory(ctx context.Context) (int64, error) {
	return s.chat.ClearPublicHistory(ctx)
}

func (s *AdminService) AssignAgent(ctx context.Context, participantID, agentID string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return fmt.Errorf("%w: agent id is required", domain.ErrInvalidPayload)
	}
	if err := s.participants.SetAgent(ctx, participantID, &agentID); err != nil {
		return err
	}
	slog.Info("agent assigned", logger.Participant(participantID), "agent", agentID)
	return nil
}

func (s *AdminService) UnassignAgent(ctx context.Context, participantID string) error {
	if err := s.participants.SetAgent(ctx, participantID, nil); err != nil {
		return err
	}
	slog.Info("agent unassigned", logger.Participant(participantID))
	return nil
}

// SetActive toggles the active flag. Deactivation also closes the
// participant's live connections; reconnects are refused at authentication.
func (s *AdminService) SetActive(ctx context.Context, participantID string, active bool) error {
	if err := s.participants.SetActive(ctx, participantID, active); err != nil {
		return err
	}
	kicked := 0
	if !active && s.presence != nil {
		kicked = s.presence.Kick(participantID, deactivatedReason)
	}
	slog.Info("participant active flag changed", logger.Participant(participantID), "active", active, "kicked", kicked)
	return nil
}

// RegeneratePasskey replaces the check-in passkey and returns the new
// plaintext once.
func (s *AdminService) RegeneratePasskey(ctx context.Context, participantID string) (string, error) {
	plain, hash, err := security.NewPasskey()
	if err != nil {
		return "", fmt.Errorf("generate passkey: %w", err)
	}
	if err := s.participants.SetPasskeyHash(ctx, participantID, hash); err != nil {
		return "", err
	}
	slog.Info("passkey regenerated", logger.Participant(participantID))
	return plain, nil
}

// IssueToken mints an access token for an active participant.
func (s *AdminService) IssueToken(ctx context.Context, participantID string) (string, time.Time, error) {
	p, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !p.Active {
		return "", time.Time{}, domain.ErrParticipantInactive
	}
	now := s.now()
	tok, err := s.tokens.Issue(p.ID, now)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, now.Add(s.tokens.TTL()), nil
}
