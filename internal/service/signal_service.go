package service

import (
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/observability"
	"github.com/foodfortalk/talk-service/internal/protocol"
)

// SignalService fans out ephemeral signals. Nothing here is stored, queued or
// retried: a signal for someone offline is dropped without an error.
type SignalService struct {
	presence Presence
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewSignalService(presence Presence, metrics *observability.Metrics, now func() time.Time) *SignalService {
	if now == nil {
		now = time.Now
	}
	return &SignalService{presence: presence, metrics: metrics, now: now}
}

// Typing relays a typing start/stop. Public scope reaches everyone but the
// emitter; private scope reaches only the target's connections. It returns the
// number of connections reached.
func (s *SignalService) Typing(emitter domain.Participant, scope domain.TypingScope, to string, isTyping bool) int {
	ev := protocol.TypingSignal(scope, emitter, isTyping)

	var n int
	switch scope {
	case domain.ScopePublic:
		n = s.presence.Broadcast(ev, emitter.ID)
	case domain.ScopePrivate:
		if to == "" || to == emitter.ID {
			return 0
		}
		n = s.presence.SendTo(to, ev)
	default:
		return 0
	}
	if n > 0 {
		s.metrics.Signal("typing")
	}
	return n
}

// Spark broadcasts a contentless reaction to every connection.
func (s *SignalService) Spark(emitter domain.Participant) int {
	n := s.presence.Broadcast(protocol.Reaction(protocol.ReactionSpark, emitter, s.now()), "")
	s.metrics.Signal(protocol.ReactionSpark)
	return n
}

// DMStarted announces a new private conversation to everyone online. Only the
// pair is named; the message itself is never included.
func (s *SignalService) DMStarted(a, b domain.Participant, at time.Time) int {
	return s.presence.Broadcast(protocol.DMStarted(a, b, at), "")
}
