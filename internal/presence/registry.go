package presence

import (
	"slices"
	"strings"
	"sync"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/protocol"
)

// Conn is a live connection as seen by the registry. Send must not block:
// it enqueues the event or fails.
type Conn interface {
	ID() string
	Send(ev protocol.ServerEvent) error
	Close(reason string)
}

type entry struct {
	participant domain.Participant
	conns       map[string]Conn // connID -> conn
}

// Registry is the process-wide online set. Joins and leaves are applied under
// one lock together with their broadcast, so every observer sees them in the
// same order and a snapshot never contains a half-applied change.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry // participantID -> entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds c to p's connection set. On p's first connection every other
// participant receives presence_joined. The returned snapshot includes p.
func (r *Registry) Register(p domain.Participant, c Conn) (first bool, snapshot []domain.PresenceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[p.ID]
	if !ok {
		e = &entry{participant: p, conns: make(map[string]Conn)}
		r.entries[p.ID] = e
		first = true

		ev := protocol.PresenceJoined(p)
		for pid, other := range r.entries {
			if pid == p.ID {
				continue
			}
			for _, oc := range other.conns {
				_ = oc.Send(ev) // best-effort
			}
		}
	}
	e.conns[c.ID()] = c

	return first, r.snapshotLocked()
}

// Deregister removes the connection. When it was the participant's last one
// the entry is dropped and everyone left receives presence_left.
func (r *Registry) Deregister(participantID, connID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[participantID]
	if !ok {
		return false
	}
	if _, ok := e.conns[connID]; !ok {
		return false
	}
	delete(e.conns, connID)
	if len(e.conns) > 0 {
		return false
	}
	delete(r.entries, participantID)

	ev := protocol.PresenceLeft(participantID)
	for _, other := range r.entries {
		for _, oc := range other.conns {
			_ = oc.Send(ev)
		}
	}
	return true
}

// ConnectionsFor returns a copy of the participant's live connections.
func (r *Registry) ConnectionsFor(participantID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[participantID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(e.conns))
	for _, c := range e.conns {
		out = append(out, c)
	}
	return out
}

// All returns every live connection except those owned by exceptID
// (pass "" to include everyone).
func (r *Registry) All(exceptID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.entries))
	for pid, e := range r.entries {
		if pid == exceptID {
			continue
		}
		for _, c := range e.conns {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends ev to every connection not owned by exceptID and returns how
// many connections accepted it.
func (r *Registry) Broadcast(ev protocol.ServerEvent, exceptID string) int {
	n := 0
	for _, c := range r.All(exceptID) {
		if c.Send(ev) == nil {
			n++
		}
	}
	return n
}

// SendTo delivers ev to all connections of one participant.
func (r *Registry) SendTo(participantID string, ev protocol.ServerEvent) int {
	n := 0
	for _, c := range r.ConnectionsFor(participantID) {
		if c.Send(ev) == nil {
			n++
		}
	}
	return n
}

// Kick closes every connection of a participant. Sessions deregister
// themselves once their loops exit.
func (r *Registry) Kick(participantID, reason string) int {
	conns := r.ConnectionsFor(participantID)
	for _, c := range conns {
		c.Close(reason)
	}
	return len(conns)
}

func (r *Registry) IsOnline(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[participantID]
	return ok
}

// Snapshot returns the online list ordered by participant id.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, domain.PresenceEntry{Participant: e.participant, Connections: len(e.conns)})
	}
	slices.SortFunc(out, func(a, b domain.PresenceEntry) int {
		return strings.Compare(a.Participant.ID, b.Participant.ID)
	})
	return out
}

// Online is the number of participants with at least one connection.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Connections is the total number of live connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		n += len(e.conns)
	}
	return n
}
