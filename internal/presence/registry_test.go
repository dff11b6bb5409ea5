package presence_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/presence"
	"github.com/foodfortalk/talk-service/internal/presence/presencetest"
	"github.com/foodfortalk/talk-service/internal/protocol"

	"github.com/stretchr/testify/require"
)

var (
	ann = domain.Participant{ID: "u1", DisplayName: "Ann", Active: true}
	bob = domain.Participant{ID: "u2", DisplayName: "Bob", Active: true}
)

func TestRegister_FirstConnectionBroadcastsJoinOnce(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()

	bobConn := presencetest.NewRecorder("b1")
	reg.Register(bob, bobConn)

	first, snap := reg.Register(ann, presencetest.NewRecorder("a1"))
	req.True(first)
	req.Len(snap, 2)
	req.Equal("u1", snap[0].Participant.ID)

	// second tab: no duplicate join
	first, snap = reg.Register(ann, presencetest.NewRecorder("a2"))
	req.False(first)
	req.Equal(2, snap[0].Connections)

	joins := bobConn.OfType(protocol.TypePresenceJoined)
	req.Len(joins, 1)
	req.Equal("u1", joins[0].Payload.(protocol.PresenceJoinedPayload).User.ID)
}

func TestRegister_JoinNotSentToSelf(t *testing.T) {
	reg := presence.NewRegistry()
	a1 := presencetest.NewRecorder("a1")
	reg.Register(ann, a1)
	reg.Register(ann, presencetest.NewRecorder("a2"))

	require.Zero(t, a1.Count(protocol.TypePresenceJoined))
}

func TestDeregister_LeaveOnlyOnLastConnection(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()

	bobConn := presencetest.NewRecorder("b1")
	reg.Register(bob, bobConn)
	reg.Register(ann, presencetest.NewRecorder("a1"))
	reg.Register(ann, presencetest.NewRecorder("a2"))

	req.False(reg.Deregister("u1", "a1"))
	req.Zero(bobConn.Count(protocol.TypePresenceLeft))
	req.True(reg.IsOnline("u1"))

	req.True(reg.Deregister("u1", "a2"))
	req.Equal(1, bobConn.Count(protocol.TypePresenceLeft))
	req.False(reg.IsOnline("u1"))

	// unknown and repeated deregistration are no-ops
	req.False(reg.Deregister("u1", "a2"))
	req.False(reg.Deregister("nobody", "x"))
	req.Equal(1, bobConn.Count(protocol.TypePresenceLeft))
}

func TestConnectionsFor_IsACopy(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	reg.Register(ann, presencetest.NewRecorder("a1"))

	conns := reg.ConnectionsFor("u1")
	req.Len(conns, 1)
	reg.Deregister("u1", "a1")
	req.Len(conns, 1)
	req.Empty(reg.ConnectionsFor("u1"))
}

func TestBroadcast_ExceptParticipant(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	a1, a2, b1 := presencetest.NewRecorder("a1"), presencetest.NewRecorder("a2"), presencetest.NewRecorder("b1")
	reg.Register(ann, a1)
	reg.Register(ann, a2)
	reg.Register(bob, b1)

	ev := protocol.ServerEvent{Type: "probe"}
	req.Equal(1, reg.Broadcast(ev, "u1"))
	req.Equal(3, reg.Broadcast(ev, ""))
	req.Equal(1, a1.Count("probe"))
	req.Equal(2, b1.Count("probe"))
}

func TestKick_ClosesAllConnections(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	a1, a2 := presencetest.NewRecorder("a1"), presencetest.NewRecorder("a2")
	reg.Register(ann, a1)
	reg.Register(ann, a2)

	req.Equal(2, reg.Kick("u1", "deactivated"))
	closed, reason := a2.Closed()
	req.True(closed)
	req.Equal("deactivated", reason)
}

func TestConcurrentTabs_ExactlyOneJoinAndLeave(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	observer := presencetest.NewRecorder("obs")
	reg.Register(bob, observer)

	const rounds = 200
	for i := 0; i < rounds; i++ {
		var wg sync.WaitGroup
		for tab := 0; tab < 2; tab++ {
			wg.Add(1)
			go func(tab int) {
				defer wg.Done()
				reg.Register(ann, presencetest.NewRecorder(fmt.Sprintf("a-%d-%d", i, tab)))
			}(tab)
		}
		wg.Wait()
		for tab := 0; tab < 2; tab++ {
			wg.Add(1)
			go func(tab int) {
				defer wg.Done()
				reg.Deregister("u1", fmt.Sprintf("a-%d-%d", i, tab))
			}(tab)
		}
		wg.Wait()
	}

	req.Equal(rounds, observer.Count(protocol.TypePresenceJoined))
	req.Equal(rounds, observer.Count(protocol.TypePresenceLeft))
	req.Equal(1, reg.Online())
	req.Equal(1, reg.Connections())
}
