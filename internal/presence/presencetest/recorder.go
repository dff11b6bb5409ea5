// Package presencetest provides an in-memory connection for tests.
package presencetest

import (
	"errors"
	"sync"

	"github.com/foodfortalk/talk-service/internal/protocol"
)

var ErrClosed = errors.New("connection closed")

// Recorder is a presence.Conn that keeps every event it is sent.
type Recorder struct {
	id string

	mu     sync.Mutex
	events []protocol.ServerEvent
	closed bool
	reason string
}

func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(ev protocol.ServerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.reason = reason
}

func (r *Recorder) Events() []protocol.ServerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.ServerEvent(nil), r.events...)
}

// OfType returns the recorded events with the given type, in arrival order.
func (r *Recorder) OfType(typ string) []protocol.ServerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.ServerEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Count(typ string) int {
	return len(r.OfType(typ))
}

func (r *Recorder) Closed() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed, r.reason
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
