package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/protocol"
	"github.com/foodfortalk/talk-service/pkg/logger"

	"github.com/gorilla/websocket"
)

const maxFrameBytes = 64 << 10

type typingKey struct {
	scope domain.TypingScope
	to    string
}

// Session is the state of one authenticated connection: who owns it, which
// typing indicators it has raised, and when it last emitted each.
type Session struct {
	srv         *Server
	conn        *wsConn
	participant domain.Participant
	log         *slog.Logger

	// read loop only
	lastTyping map[typingKey]time.Time
	typing     map[typingKey]struct{}
}

func newSession(srv *Server, conn *wsConn, p domain.Participant) *Session {
	return &Session{
		srv:         srv,
		conn:        conn,
		participant: p,
		log:         logger.ForConn(conn.id, p.ID),
		lastTyping:  make(map[typingKey]time.Time),
		typing:      make(map[typingKey]struct{}),
	}
}

// readLoop decodes frames until the socket fails or closes. Bad frames are
// answered with an error event; they never end the session.
func (s *Session) readLoop(ctx context.Context) {
	ws := s.conn.ws
	deadline := 2 * s.srv.cfg.PingEvery

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(deadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws read failed", logger.Err(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(deadline))

		if typ != websocket.TextMessage {
			s.reply(protocol.ErrorReply(domain.ErrInvalidPayload, ""))
			continue
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug("ws frame rejected", logger.Err(err))
			s.srv.metrics.MessageFailed(protocol.Code(err))
			s.reply(protocol.ErrorReply(err, frame.Ref))
			continue
		}
		s.Dispatch(ctx, frame)
	}
}

// Dispatch hands one decoded client event to the router or the broadcaster.
func (s *Session) Dispatch(ctx context.Context, f protocol.Frame) {
	var err error
	switch ev := f.Event.(type) {
	case protocol.SendPublic:
		_, err = s.srv.chat.HandlePublic(ctx, s.participant, ev.Content)
	case protocol.SendPrivate:
		_, err = s.srv.chat.HandlePrivate(ctx, s.participant, ev.RecipientID, ev.Content)
	case protocol.Typing:
		s.handleTyping(ev)
	case protocol.Spark:
		s.srv.signals.Spark(s.participant)
	default:
		err = domain.ErrUnknownEvent
	}
	if err != nil {
		s.log.Debug("ws event rejected", "type", f.Event.Type(), logger.Err(err))
		s.reply(protocol.ErrorReply(err, f.Ref))
	}
}

// handleTyping forwards typing signals. A repeated start within the throttle
// window is dropped; a stop is always forwarded.
func (s *Session) handleTyping(ev protocol.Typing) {
	key := typingKey{scope: ev.Scope}
	if ev.Scope == domain.ScopePrivate {
		key.to = ev.To
	}

	if ev.Start {
		now := s.srv.now()
		_, active := s.typing[key]
		if active && now.Sub(s.lastTyping[key]) < s.srv.cfg.TypingThrottle {
			return
		}
		s.typing[key] = struct{}{}
		s.lastTyping[key] = now
	} else {
		delete(s.typing, key)
		delete(s.lastTyping, key)
	}
	s.srv.signals.Typing(s.participant, key.scope, key.to, ev.Start)
}

// stopTyping clears every indicator this connection left raised.
func (s *Session) stopTyping() {
	for key := range s.typing {
		s.srv.signals.Typing(s.participant, key.scope, key.to, false)
	}
	clear(s.typing)
	clear(s.lastTyping)
}

func (s *Session) reply(ev protocol.ServerEvent) {
	_ = s.conn.Send(ev)
}
