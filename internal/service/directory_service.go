package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/pkg/logger"
)

// DirectoryService resolves participants for the chat engine. The engine only
// reads from the directory; changes go through AdminService.
type DirectoryService struct {
	participants ParticipantStore
	tokens       TokenVerifier
	timeout      time.Duration
	now          func() time.Time
}

func NewDirectoryService(participants ParticipantStore, tokens TokenVerifier, timeout time.Duration, now func() time.Time) *DirectoryService {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DirectoryService{participants: participants, tokens: tokens, timeout: timeout, now: now}
}

// Authenticate resolves a bearer token to an active participant. Failures
// wrap domain.ErrUnauthenticated or domain.ErrParticipantInactive.
func (s *DirectoryService) Authenticate(ctx context.Context, token string) (domain.Participant, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Participant{}, err
	}

	p, err := s.get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound):
		return domain.Participant{}, fmt.Errorf("%w: unknown participant", domain.ErrUnauthenticated)
	case err != nil:
		slog.Error("directory.authenticate.get failed", logger.Participant(id), logger.Err(err))
		return domain.Participant{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	case !p.Active:
		return domain.Participant{}, domain.ErrParticipantInactive
	}
	return p, nil
}

// Recipient resolves the target of a private message. Anything that cannot
// receive messages is reported as domain.ErrUnknownRecipient.
func (s *DirectoryService) Recipient(ctx context.Context, id string) (domain.Participant, error) {
	if err := domain.ValidateParticipantID(id); err != nil {
		return domain.Participant{}, domain.ErrUnknownRecipient
	}
	p, err := s.get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound):
		return domain.Participant{}, domain.ErrUnknownRecipient
	case err != nil:
		return domain.Participant{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	case !p.Active:
		return domain.Participant{}, domain.ErrUnknownRecipient
	}
	return p, nil
}

func (s *DirectoryService) Lookup(ctx context.Context, id string) (domain.Participant, error) {
	if err := domain.ValidateParticipantID(id); err != nil {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return s.get(ctx, id)
}

// ViewProfile returns the viewed participant and records the view.
func (s *DirectoryService) ViewProfile(ctx context.Context, viewer domain.Participant, viewedID string) (domain.Participant, error) {
	p, err := s.Lookup(ctx, viewedID)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.ID != viewer.ID {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.participants.RecordProfileView(ctx, viewer.ID, p.ID, s.now().UTC()); err != nil {
			slog.Warn("directory.profileView.record failed", "viewer", viewer.ID, "viewed", p.ID, logger.Err(err))
		}
	}
	return p, nil
}

func (s *DirectoryService) get(ctx context.Context, id string) (domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.participants.Get(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}
	return *p, nil
}
