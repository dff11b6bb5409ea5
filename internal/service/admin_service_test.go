package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/security"

	"github.com/stretchr/testify/require"
)

func newAdmin(f *fixture) *AdminService {
	tokens := security.NewTokenIssuer("0123456789abcdef0123456789abcdef", "foodfortalk", "talk", time.Hour, 0)
	return NewAdminService(f.people, f.chat, f.reg, tokens, nil)
}

func TestAdmin_CreateParticipant(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin := newAdmin(f)
	ctx := context.Background()

	res, err := admin.CreateParticipant(ctx, "", " Eve ")
	req.NoError(err)
	req.NoError(domain.ValidateParticipantID(res.Participant.ID))
	req.False(strings.Contains(res.Participant.ID, "-"))
	req.Equal("Eve", res.Participant.DisplayName)
	req.True(res.Participant.Active)
	req.True(security.ComparePasskey(f.people.passkeys[res.Participant.ID], res.Passkey))

	_, err = admin.CreateParticipant(ctx, "u1", "dup")
	req.ErrorIs(err, domain.ErrParticipantExists)

	_, err = admin.CreateParticipant(ctx, "bad-id", "x")
	req.ErrorIs(err, domain.ErrInvalidParticipantID)
}

func TestAdmin_DeactivateKicksAndBlocksLogin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin := newAdmin(f)
	ctx := context.Background()
	a1, a2 := f.connect(ann, "a1"), f.connect(ann, "a2")

	req.NoError(admin.SetActive(ctx, "u1", false))
	for _, r := range []interface{ Closed() (bool, string) }{a1, a2} {
		closed, reason := r.Closed()
		req.True(closed)
		req.Equal(deactivatedReason, reason)
	}
	_, err := f.dir.Authenticate(ctx, "tok-ann")
	req.ErrorIs(err, domain.ErrParticipantInactive)

	_, _, err = admin.IssueToken(ctx, "u1")
	req.ErrorIs(err, domain.ErrParticipantInactive)

	req.NoError(admin.SetActive(ctx, "u1", true))
	_, err = f.dir.Authenticate(ctx, "tok-ann")
	req.NoError(err)

	req.ErrorIs(admin.SetActive(ctx, "u9", true), domain.ErrParticipantNotFound)
}

func TestAdmin_AgentAssignment(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin := newAdmin(f)
	ctx := context.Background()

	req.NoError(admin.AssignAgent(ctx, "u2", "agent7"))
	p, err := admin.GetParticipant(ctx, "u2")
	req.NoError(err)
	req.NotNil(p.AssignedAgentID)
	req.Equal("agent7", *p.AssignedAgentID)

	req.NoError(admin.UnassignAgent(ctx, "u2"))
	p, err = admin.GetParticipant(ctx, "u2")
	req.NoError(err)
	req.Nil(p.AssignedAgentID)

	req.ErrorIs(admin.AssignAgent(ctx, "u2", "  "), domain.ErrInvalidPayload)
}

func TestAdmin_RegeneratePasskeyAndIssueToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	admin := newAdmin(f)
	ctx := context.Background()

	plain, err := admin.RegeneratePasskey(ctx, "u2")
	req.NoError(err)
	req.True(security.ComparePasskey(f.people.passkeys["u2"], plain))

	_, err = admin.RegeneratePasskey(ctx, "u9")
	req.ErrorIs(err, domain.ErrParticipantNotFound)

	tok, exp, err := admin.IssueToken(ctx, "u2")
	req.NoError(err)
	req.True(exp.After(time.Now()))

	tokens := security.NewTokenIssuer("0123456789abcdef0123456789abcdef", "foodfortalk", "talk", time.Hour, 0)
	id, err := tokens.Verify(tok)
	req.NoError(err)
	req.Equal("u2", id)
}
