package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/presence"
	"github.com/foodfortalk/talk-service/internal/presence/presencetest"
	"github.com/foodfortalk/talk-service/internal/storage/badgerstore"

	"github.com/stretchr/testify/require"
)

var (
	ann   = domain.Participant{ID: "u1", DisplayName: "Ann", Active: true}
	bob   = domain.Participant{ID: "u2", DisplayName: "Bob", Active: true}
	carol = domain.Participant{ID: "u3", DisplayName: "Carol", Active: true}
	dave  = domain.Participant{ID: "u4", DisplayName: "Dave", Active: false}
)

type memParticipants struct {
	mu       sync.Mutex
	byID     map[string]domain.Participant
	passkeys map[string]string
	views    map[[2]string]time.Time
}

func newMemParticipants(ps ...domain.Participant) *memParticipants {
	m := &memParticipants{
		byID:     map[string]domain.Participant{},
		passkeys: map[string]string{},
		views:    map[[2]string]time.Time{},
	}
	for _, p := range ps {
		m.byID[p.ID] = p
	}
	return m
}

func (m *memParticipants) Create(_ context.Context, p *domain.Participant, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return domain.ErrParticipantExists
	}
	m.byID[p.ID] = *p
	m.passkeys[p.ID] = hash
	return nil
}

func (m *memParticipants) Get(_ context.Context, id string) (*domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return &p, nil
}

func (m *memParticipants) update(id string, fn func(p *domain.Participant)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	fn(&p)
	m.byID[id] = p
	return nil
}

func (m *memParticipants) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(p *domain.Participant) { p.Active = active })
}

func (m *memParticipants) SetAgent(_ context.Context, id string, agentID *string) error {
	return m.update(id, func(p *domain.Participant) { p.AssignedAgentID = agentID })
}

func (m *memParticipants) SetPasskeyHash(_ context.Context, id, hash string) error {
	return m.update(id, func(*domain.Participant) { m.passkeys[id] = hash })
}

func (m *memParticipants) RecordProfileView(_ context.Context, viewer, viewed string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[[2]string{viewer, viewed}] = at
	return nil
}

type mapTokens map[string]string

func (t mapTokens) Verify(token string) (string, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: bad token", domain.ErrUnauthenticated)
}

// failingStore fails every call.
type failingStore struct{}

var errDiskGone = errors.New("disk gone")

func (failingStore) AppendPublic(context.Context, *domain.Message) error { return errDiskGone }
func (failingStore) AppendSystem(context.Context, *domain.Message) error { return errDiskGone }
func (failingStore) AppendPrivate(context.Context, *domain.Message) (bool, error) {
	return false, errDiskGone
}
func (failingStore) MarkRead(context.Context, string, string, time.Time) (int64, error) {
	return 0, errDiskGone
}
func (failingStore) RecentPublic(context.Context, int, int64) ([]domain.Message, error) {
	return nil, errDiskGone
}
func (failingStore) RecentPrivate(context.Context, string, int, int64) ([]domain.Message, error) {
	return nil, errDiskGone
}
func (failingStore) ClearPublicHistory(context.Context) (int64, error) { return 0, errDiskGone }

type fixture struct {
	reg     *presence.Registry
	people  *memParticipants
	store   HistoryStore
	dir     *DirectoryService
	signals *SignalService
	chat    *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := badgerstore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return newFixtureWithStore(t, s)
}

func newFixtureWithStore(t *testing.T, store HistoryStore) *fixture {
	t.Helper()
	f := &fixture{
		reg:    presence.NewRegistry(),
		people: newMemParticipants(ann, bob, carol, dave),
		store:  store,
	}
	f.dir = NewDirectoryService(f.people, mapTokens{"tok-ann": "u1", "tok-dave": "u4", "tok-ghost": "u9"}, time.Second, nil)
	f.signals = NewSignalService(f.reg, nil, nil)
	f.chat = NewChatService(store, f.dir, f.reg, f.signals, nil, nil, ChatConfig{
		HistoryLimit:     50,
		MaxContentLength: 20,
		StoreTimeout:     time.Second,
		Welcome:          "Welcome to Food for Talk, {name}!",
	}, nil)
	return f
}

// connect registers a recorder tab for p.
func (f *fixture) connect(p domain.Participant, connID string) *presencetest.Recorder {
	r := presencetest.NewRecorder(connID)
	f.reg.Register(p, r)
	r.Reset()
	return r
}
