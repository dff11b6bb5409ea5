package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/observability"
	"github.com/foodfortalk/talk-service/internal/protocol"
	"github.com/foodfortalk/talk-service/pkg/logger"
)

// roomKey is the lock key of the public room. Conversation ids always hold
// exactly one separator, so they never collide with it.
const roomKey = "room"

const (
	maxPageLimit       = 200
	clearedNotice      = "The public chat history was cleared by a moderator."
	welcomeNamePattern = "{name}"
)

type ChatConfig struct {
	HistoryLimit     int
	MaxContentLength int
	StoreTimeout     time.Duration
	Welcome          string
}

// RecipientResolver looks up the target of a private message.
type RecipientResolver interface {
	Recipient(ctx context.Context, id string) (domain.Participant, error)
}

// ChatService classifies, persists and delivers chat messages. Appends and
// deliveries for one conversation (or the public room) run under that key's
// lock, so every connection receives them in id order.
type ChatService struct {
	store      HistoryStore
	recipients RecipientResolver
	presence   Presence
	signals    *SignalService
	filter     ContentFilter
	metrics    *observability.Metrics
	locks      *KeyLock
	cfg        ChatConfig
	now        func() time.Time
}

func NewChatService(
	store HistoryStore,
	recipients RecipientResolver,
	presence Presence,
	signals *SignalService,
	filter ContentFilter,
	metrics *observability.Metrics,
	cfg ChatConfig,
	now func() time.Time,
) *ChatService {
	if now == nil {
		now = time.Now
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &ChatService{
		store:      store,
		recipients: recipients,
		presence:   presence,
		signals:    signals,
		filter:     filter,
		metrics:    metrics,
		locks:      NewKeyLock(),
		cfg:        cfg,
		now:        now,
	}
}

func (s *ChatService) HistoryLimit() int {
	return s.cfg.HistoryLimit
}

// HandlePublic stores a public message and delivers it to every live
// connection, the sender's own tabs included.
func (s *ChatService) HandlePublic(ctx context.Context, sender domain.Participant, content string) (domain.Message, error) {
	content, err := s.prepare(content)
	if err != nil {
		s.metrics.MessageFailed(protocol.Code(err))
		return domain.Message{}, err
	}

	unlock := s.locks.Lock(roomKey)
	defer unlock()

	m := domain.NewPublicMessage(sender, content, s.clock())
	if err := s.withStore(ctx, "append_public", func(ctx context.Context) error {
		return s.store.AppendPublic(ctx, &m)
	}); err != nil {
		slog.Error("chat.public.append failed", logger.Participant(sender.ID), logger.Err(err))
		s.metrics.MessageFailed(protocol.Code(err))
		return domain.Message{}, err
	}

	s.presence.Broadcast(protocol.PublicMessage(m), "")
	s.metrics.MessageStored(string(domain.KindPublic))
	return m, nil
}

// HandlePrivate stores a private message and delivers it to every live
// connection of both parties. When the recipient is online the message is
// stored already read. The first message of a conversation triggers a
// dm_started broadcast to everyone.
func (s *ChatService) HandlePrivate(ctx context.Context, sender domain.Participant, recipientID, content string) (domain.Message, error) {
	m, first, err := s.handlePrivate(ctx, sender, recipientID, content)
	if err != nil {
		s.metrics.MessageFailed(protocol.Code(err))
		return domain.Message{}, err
	}
	s.metrics.MessageStored(string(domain.KindPrivate))

	if first {
		recipient := domain.Participant{ID: m.RecipientID, DisplayName: m.RecipientName}
		s.signals.DMStarted(sender, recipient, m.CreatedAt)
		s.metrics.ConversationStarted()
	}
	return m, nil
}

func (s *ChatService) handlePrivate(ctx context.Context, sender domain.Participant, recipientID, content string) (domain.Message, bool, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == sender.ID {
		return domain.Message{}, false, domain.ErrSelfMessage
	}
	content, err := s.prepare(content)
	if err != nil {
		return domain.Message{}, false, err
	}
	recipient, err := s.recipients.Recipient(ctx, recipientID)
	if err != nil {
		return domain.Message{}, false, err
	}

	m := domain.NewPrivateMessage(sender, recipient, content, time.Time{})

	unlock := s.locks.Lock(m.ConversationID)
	defer unlock()

	// delivery targets are fixed here; a connection opening later catches up
	// through history
	recipientConns := s.presence.ConnectionsFor(recipient.ID)
	senderConns := s.presence.ConnectionsFor(sender.ID)

	m.CreatedAt = s.clock()
	if len(recipientConns) > 0 {
		m.MarkRead(m.CreatedAt)
	}

	var first bool
	if err := s.withStore(ctx, "append_private", func(ctx context.Context) error {
		var err error
		first, err = s.store.AppendPrivate(ctx, &m)
		return err
	}); err != nil {
		slog.Error("chat.private.append failed",
			logger.Participant(sender.ID), logger.Conversation(m.ConversationID), logger.Err(err))
		return domain.Message{}, false, err
	}

	ev := protocol.PrivateMessage(m)
	for _, c := range recipientConns {
		s.send(c.Send(ev))
	}
	for _, c := range senderConns {
		s.send(c.Send(ev))
	}
	return m, first, nil
}

// Welcome builds the greeting sent after authentication. It is not stored
// and carries id 0.
func (s *ChatService) Welcome(p domain.Participant) domain.Message {
	text := s.cfg.Welcome
	if text == "" {
		text = "Welcome, " + welcomeNamePattern + "!"
	}
	return domain.NewSystemMessage(strings.ReplaceAll(text, welcomeNamePattern, p.Name()), s.clock())
}

// RecentPublic returns the newest room messages, older than before when it
// is set. limit <= 0 uses the configured history window.
func (s *ChatService) RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error) {
	limit = s.pageLimit(limit)
	var out []domain.Message
	err := s.withStore(ctx, "recent_public", func(ctx context.Context) error {
		var err error
		out, err = s.store.RecentPublic(ctx, limit, before)
		return err
	})
	return out, err
}

// ConversationHistory returns a page of a private conversation. The viewer
// must be one of its two participants.
func (s *ChatService) ConversationHistory(ctx context.Context, viewer domain.Participant, conversationID string, limit int, before int64) ([]domain.Message, error) {
	if err := s.checkMember(conversationID, viewer.ID); err != nil {
		return nil, err
	}
	limit = s.pageLimit(limit)
	var out []domain.Message
	err := s.withStore(ctx, "recent_private", func(ctx context.Context) error {
		var err error
		out, err = s.store.RecentPrivate(ctx, conversationID, limit, before)
		return err
	})
	return out, err
}

// MarkRead marks the reader's unread messages in a conversation as read.
func (s *ChatService) MarkRead(ctx context.Context, reader domain.Participant, conversationID string) (int64, error) {
	if err := s.checkMember(conversationID, reader.ID); err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	var n int64
	err := s.withStore(ctx, "mark_read", func(ctx context.Context) error {
		var err error
		n, err = s.store.MarkRead(ctx, conversationID, reader.ID, s.clock())
		return err
	})
	return n, err
}

// PostSystem stores a system notice in the public room and broadcasts it.
func (s *ChatService) PostSystem(ctx context.Context, content string) (domain.Message, error) {
	content, err := domain.NormalizeContent(content, 0)
	if err != nil {
		return domain.Message{}, err
	}
	unlock := s.locks.Lock(roomKey)
	defer unlock()
	return s.postSystemLocked(ctx, content)
}

func (s *ChatService) postSystemLocked(ctx context.Context, content string) (domain.Message, error) {
	m := domain.NewSystemMessage(content, s.clock())
	if err := s.withStore(ctx, "append_system", func(ctx context.Context) error {
		return s.store.AppendSystem(ctx, &m)
	}); err != nil {
		return domain.Message{}, err
	}
	s.presence.Broadcast(protocol.System(m), "")
	s.metrics.MessageStored(string(domain.KindSystem))
	return m, nil
}

// ClearPublicHistory deletes every public and system message, then stores and
// broadcasts a notice so live clients know to drop their copies.
func (s *ChatService) ClearPublicHistory(ctx context.Context) (int64, error) {
	unlock := s.locks.Lock(roomKey)
	defer unlock()

	var n int64
	if err := s.withStore(ctx, "clear_public", func(ctx context.Context) error {
		var err error
		n, err = s.store.ClearPublicHistory(ctx)
		return err
	}); err != nil {
		return 0, err
	}
	if _, err := s.postSystemLocked(ctx, clearedNotice); err != nil {
		slog.Warn("chat.clear.notice failed", logger.Err(err))
	}
	slog.Info("public history cleared", "deleted", n)
	return n, nil
}

func (s *ChatService) prepare(content string) (string, error) {
	content, err := domain.NormalizeContent(content, s.cfg.MaxContentLength)
	if err != nil {
		return "", err
	}
	if s.filter != nil {
		content = s.filter.Apply(content)
	}
	return content, nil
}

func (s *ChatService) checkMember(conversationID, participantID string) error {
	if _, _, err := domain.ParseConversationID(conversationID); err != nil {
		return err
	}
	if !domain.IsConversationMember(conversationID, participantID) {
		return domain.ErrNotConversationMember
	}
	return nil
}

func (s *ChatService) pageLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.HistoryLimit
	}
	return min(limit, maxPageLimit)
}

// withStore runs fn with the store timeout. Infrastructure failures are
// wrapped in domain.ErrStoreUnavailable; domain errors pass through.
func (s *ChatService) withStore(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStore(op, start)
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

func (s *ChatService) send(err error) {
	if err != nil {
		s.metrics.Dropped()
	}
}

func (s *ChatService) clock() time.Time {
	return s.now().UTC()
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidConversation,
		domain.ErrNotConversationMember,
		domain.ErrInvalidParticipantID,
		domain.ErrParticipantNotFound,
		domain.ErrStoreUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
