package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/observability"
	"github.com/foodfortalk/talk-service/internal/presence"
	"github.com/foodfortalk/talk-service/internal/protocol"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/gorilla/websocket"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Participant, error)
}

type ChatSvc interface {
	HandlePublic(ctx context.Context, sender domain.Participant, content string) (domain.Message, error)
	HandlePrivate(ctx context.Context, sender domain.Participant, recipientID, content string) (domain.Message, error)
	RecentPublic(ctx context.Context, limit int, before int64) ([]domain.Message, error)
	Welcome(p domain.Participant) domain.Message
}

type SignalSvc interface {
	Typing(emitter domain.Participant, scope domain.TypingScope, to string, isTyping bool) int
	Spark(emitter domain.Participant) int
}

type Registry interface {
	Register(p domain.Participant, c presence.Conn) (first bool, snapshot []domain.PresenceEntry)
	Deregister(participantID, connID string) (last bool)
	All(exceptID string) []presence.Conn
}

type Config struct {
	SendBuffer     int
	PingEvery      time.Duration
	WriteWait      time.Duration
	TypingThrottle time.Duration
	AllowedOrigins []string
}

const shutdownReason = "server shutting down"

type Server struct {
	upgrader websocket.Upgrader
	auth     Authenticator
	chat     ChatSvc
	signals  SignalSvc
	registry Registry
	metrics  *observability.Metrics
	cfg      Config
	now      func() time.Time
}

func NewServer(auth Authenticator, chat ChatSvc, signals SignalSvc, registry Registry, metrics *observability.Metrics, cfg Config) *Server {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingEvery <= 0 {
		cfg.PingEvery = 15 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.TypingThrottle < 0 {
		cfg.TypingThrottle = 0
	}
	origins := slices.Clone(cfg.AllowedOrigins)

	return &Server{
		auth:     auth,
		chat:     chat,
		signals:  signals,
		registry: registry,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

// HandleWS serves GET /ws?access_token=... (or an Authorization: Bearer header).
// The token is checked after the upgrade so a rejection can carry a close
// code the client understands.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := accessToken(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", logger.Err(err))
		return
	}

	ctx := r.Context()
	p, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		s.metrics.AuthFailed()
		code, reason := rejection(err)
		slog.Info("ws auth rejected", "code", code, logger.Err(err))
		rejectConn(ws, code, reason, s.cfg.WriteWait)
		return
	}

	c := newWsConn(ws, p.ID, s.cfg.SendBuffer, s.cfg.WriteWait, s.cfg.PingEvery, s.metrics)
	go c.writeLoop()

	_, snapshot := s.registry.Register(p, c)
	s.metrics.ConnOpened()
	sess := newSession(s, c, p)
	sess.log.Info("ws connected")

	defer func() {
		sess.stopTyping()
		s.registry.Deregister(p.ID, c.id)
		s.metrics.ConnClosed()
		c.closeWith(websocket.CloseNormalClosure, "")
		<-c.done
		sess.log.Info("ws disconnected")
	}()

	history, histErr := s.chat.RecentPublic(ctx, 0, 0)
	if histErr != nil {
		sess.log.Warn("ws history unavailable", "err", histErr)
		history = nil
	}
	handshake := []protocol.ServerEvent{
		protocol.Session(p),
		protocol.Welcome(s.chat.Welcome(p)),
		protocol.History(history),
		protocol.PresenceList(snapshot),
	}
	if histErr != nil {
		handshake = append(handshake, protocol.ErrorReply(histErr, ""))
	}
	c.Start(handshake...)

	sess.readLoop(ctx)
}

// Shutdown closes every live connection with a going-away frame.
func (s *Server) Shutdown() {
	for _, c := range s.registry.All("") {
		c.Close(shutdownReason)
	}
}

func accessToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func rejection(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrParticipantInactive):
		return CloseForbidden, "participant inactive"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return websocket.CloseTryAgainLater, "store unavailable"
	default:
		return CloseUnauthenticated, "unauthenticated"
	}
}
