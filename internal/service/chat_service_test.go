package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/foodfortalk/talk-service/internal/domain"
	"github.com/foodfortalk/talk-service/internal/moderation"
	"github.com/foodfortalk/talk-service/internal/presence/presencetest"
	"github.com/foodfortalk/talk-service/internal/protocol"

	"github.com/stretchr/testify/require"
)

func publicIDs(r *presencetest.Recorder) []int64 {
	var ids []int64
	for _, ev := range r.OfType(protocol.TypePublicMessage) {
		ids = append(ids, ev.Payload.(protocol.MessagePayload).Message.ID)
	}
	return ids
}

func privateViews(r *presencetest.Recorder) []protocol.PrivateMessagePayload {
	var out []protocol.PrivateMessagePayload
	for _, ev := range r.OfType(protocol.TypePrivateMessage) {
		out = append(out, ev.Payload.(protocol.PrivateMessagePayload))
	}
	return out
}

func TestHandlePublic_EveryConnectionGetsOneCopy(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	annTabs := []*presencetest.Recorder{f.connect(ann, "a1"), f.connect(ann, "a2"), f.connect(ann, "a3")}
	bobTab := f.connect(bob, "b1")

	m, err := f.chat.HandlePublic(ctx, ann, "  hi  ")
	req.NoError(err)
	req.NotZero(m.ID)
	req.Equal("hi", m.Content)

	for _, r := range append(annTabs, bobTab) {
		req.Equal([]int64{m.ID}, publicIDs(r), "conn %s", r.ID())
	}

	hist, err := f.chat.RecentPublic(ctx, 0, 0)
	req.NoError(err)
	req.Len(hist, 1)
	req.Equal(m.ID, hist[0].ID)
	req.Equal("Ann", hist[0].SenderName)
}

func TestHandlePublic_RejectsWithoutSideEffects(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	bobTab := f.connect(bob, "b1")

	_, err := f.chat.HandlePublic(ctx, ann, "   ")
	req.ErrorIs(err, domain.ErrEmptyContent)

	_, err = f.chat.HandlePublic(ctx, ann, strings.Repeat("x", 21))
	req.ErrorIs(err, domain.ErrContentTooLong)

	req.Zero(bobTab.Count(protocol.TypePublicMessage))
	hist, err := f.chat.RecentPublic(ctx, 0, 0)
	req.NoError(err)
	req.Empty(hist)
}

func TestHandlePublic_ConcurrentSendsArriveInIDOrder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	watchers := []*presencetest.Recorder{f.connect(carol, "c1"), f.connect(carol, "c2"), f.connect(bob, "b1")}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := f.chat.HandlePublic(ctx, ann, fmt.Sprintf("g%d-%d", g, i))
				req.NoError(err)
			}
		}(g)
	}
	wg.Wait()

	for _, w := range watchers {
		ids := publicIDs(w)
		req.Len(ids, 40)
		for i := 1; i < len(ids); i++ {
			req.Greater(ids[i], ids[i-1])
		}
	}
}

func TestHandlePrivate_OfflineRecipientStaysUnread(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	a1, a2 := f.connect(ann, "a1"), f.connect(ann, "a2")
	c1 := f.connect(carol, "c1")

	m, err := f.chat.HandlePrivate(ctx, ann, "u2", "hey")
	req.NoError(err)
	req.Equal("u1-u2", m.ConversationID)
	req.False(m.IsRead)
	req.Nil(m.ReadAt)
	req.Equal("Bob", m.RecipientName)

	// sender's tabs see the echo, bystanders only the dm_started
	req.Len(privateViews(a1), 1)
	req.Len(privateViews(a2), 1)
	req.Empty(privateViews(c1))

	hist, err := f.chat.ConversationHistory(ctx, bob, "u1-u2", 0, 0)
	req.NoError(err)
	req.Len(hist, 1)
	req.False(hist[0].IsRead)

	n, err := f.chat.MarkRead(ctx, bob, "u1-u2")
	req.NoError(err)
	req.EqualValues(1, n)

	hist, err = f.chat.ConversationHistory(ctx, ann, "u1-u2", 0, 0)
	req.NoError(err)
	req.True(hist[0].IsRead)
	req.False(hist[0].ReadAt.Before(hist[0].CreatedAt))
}

func TestHandlePrivate_OnlineRecipientReadOnDelivery(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.connect(ann, "a1")
	b1, b2 := f.connect(bob, "b1"), f.connect(bob, "b2")

	m, err := f.chat.HandlePrivate(ctx, ann, "u2", "hey")
	req.NoError(err)
	req.True(m.IsRead)
	req.NotNil(m.ReadAt)
	req.False(m.ReadAt.Before(m.CreatedAt))

	for _, r := range []*presencetest.Recorder{a1, b1, b2} {
		views := privateViews(r)
		req.Len(views, 1)
		req.Equal("u1-u2", views[0].ConversationID)
		req.Equal(m.ID, views[0].Message.ID)
		req.True(*views[0].Message.IsRead)
	}

	hist, err := f.chat.ConversationHistory(ctx, bob, "u1-u2", 0, 0)
	req.NoError(err)
	req.True(hist[0].IsRead)
}

func TestHandlePrivate_DMStartedOnlyForFirstMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	a1, b1, c1 := f.connect(ann, "a1"), f.connect(bob, "b1"), f.connect(carol, "c1")

	_, err := f.chat.HandlePrivate(ctx, ann, "u2", "hey")
	req.NoError(err)
	_, err = f.chat.HandlePrivate(ctx, bob, "u1", "hey yourself")
	req.NoError(err)
	_, err = f.chat.HandlePrivate(ctx, ann, "u2", "again")
	req.NoError(err)

	for _, r := range []*presencetest.Recorder{a1, b1, c1} {
		req.Equal(1, r.Count(protocol.TypeDMStarted), "conn %s", r.ID())
	}
	started := c1.OfType(protocol.TypeDMStarted)[0].Payload.(protocol.DMStartedPayload)
	req.Len(started.Participants, 2)
	req.Equal("Ann", started.Participants[0].DisplayName)
	req.Equal("Bob", started.Participants[1].DisplayName)

	// bystanders never see content
	req.Empty(privateViews(c1))
}

func TestHandlePrivate_ConcurrentFirstSendsOneDMStarted(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.connect(carol, "c1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.chat.HandlePrivate(ctx, ann, "u2", "hi bob")
			req.NoError(err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.chat.HandlePrivate(ctx, bob, "u1", "hi ann")
			req.NoError(err)
		}()
	}
	wg.Wait()

	req.Equal(1, c1.Count(protocol.TypeDMStarted))
	hist, err := f.chat.ConversationHistory(ctx, ann, "u1-u2", 100, 0)
	req.NoError(err)
	req.Len(hist, 20)
}

func TestHandlePrivate_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.connect(ann, "a1")

	cases := []struct {
		name      string
		recipient string
		content   string
		want      error
	}{
		{"unknown recipient", "u9", "hi", domain.ErrUnknownRecipient},
		{"inactive recipient", "u4", "hi", domain.ErrUnknownRecipient},
		{"malformed recipient", "u2-u3", "hi", domain.ErrUnknownRecipient},
		{"self", "u1", "hi", domain.ErrSelfMessage},
		{"empty", "u2", " \n ", domain.ErrEmptyContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.chat.HandlePrivate(ctx, ann, tc.recipient, tc.content)
			require.ErrorIs(t, err, tc.want)
		})
	}

	require.Zero(t, a1.Count(protocol.TypePrivateMessage))
	require.Zero(t, a1.Count(protocol.TypeDMStarted))
	hist, err := f.chat.ConversationHistory(ctx, ann, "u1-u2", 0, 0)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestStoreFailure_IsRetryableAndNotDelivered(t *testing.T) {
	req := require.New(t)
	f := newFixtureWithStore(t, failingStore{})
	ctx := context.Background()
	a1, b1 := f.connect(ann, "a1"), f.connect(bob, "b1")

	_, err := f.chat.HandlePublic(ctx, ann, "hi")
	req.ErrorIs(err, domain.ErrStoreUnavailable)
	reply := protocol.ErrorReply(err, "").Payload.(protocol.ErrorPayload)
	req.True(reply.Retryable)

	_, err = f.chat.HandlePrivate(ctx, ann, "u2", "hey")
	req.ErrorIs(err, domain.ErrStoreUnavailable)

	for _, r := range []*presencetest.Recorder{a1, b1} {
		req.Zero(r.Count(protocol.TypePublicMessage))
		req.Zero(r.Count(protocol.TypePrivateMessage))
		req.Zero(r.Count(protocol.TypeDMStarted))
	}
}

func TestConversationHistory_MembersOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chat.ConversationHistory(ctx, carol, "u1-u2", 0, 0)
	req.ErrorIs(err, domain.ErrNotConversationMember)

	_, err = f.chat.MarkRead(ctx, carol, "u1-u2")
	req.ErrorIs(err, domain.ErrNotConversationMember)

	_, err = f.chat.ConversationHistory(ctx, ann, "u2-u1", 0, 0)
	req.ErrorIs(err, domain.ErrInvalidConversation)
}

func TestConversationHistory_Paging(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := f.chat.HandlePrivate(ctx, ann, "u2", fmt.Sprintf("m%d", i))
		req.NoError(err)
		ids = append(ids, m.ID)
	}

	page, err := f.chat.ConversationHistory(ctx, bob, "u1-u2", 2, 0)
	req.NoError(err)
	req.Equal([]int64{ids[3], ids[4]}, []int64{page[0].ID, page[1].ID})

	page, err = f.chat.ConversationHistory(ctx, bob, "u1-u2", 2, page[0].ID)
	req.NoError(err)
	req.Equal([]int64{ids[1], ids[2]}, []int64{page[0].ID, page[1].ID})
}

func TestClearPublicHistory_LeavesNotice(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	b1 := f.connect(bob, "b1")

	for i := 0; i < 3; i++ {
		_, err := f.chat.HandlePublic(ctx, ann, "hello")
		req.NoError(err)
	}
	dm, err := f.chat.HandlePrivate(ctx, ann, "u2", "private stays")
	req.NoError(err)

	n, err := f.chat.ClearPublicHistory(ctx)
	req.NoError(err)
	req.EqualValues(3, n)

	hist, err := f.chat.RecentPublic(ctx, 0, 0)
	req.NoError(err)
	req.Len(hist, 1)
	req.Equal(domain.KindSystem, hist[0].Kind)
	req.Equal(1, b1.Count(protocol.TypeSystem))

	priv, err := f.chat.ConversationHistory(ctx, bob, dm.ConversationID, 0, 0)
	req.NoError(err)
	req.Len(priv, 1)
}

func TestWelcome(t *testing.T) {
	f := newFixture(t)
	m := f.chat.Welcome(ann)
	require.Equal(t, "Welcome to Food for Talk, Ann!", m.Content)
	require.Equal(t, domain.KindSystem, m.Kind)
	require.Zero(t, m.ID)
}

func TestHandlePublic_AppliesCensor(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	censor, err := moderation.NewCensor([]string{"durian"}, '*')
	req.NoError(err)
	f.chat.filter = censor

	m, err := f.chat.HandlePublic(context.Background(), ann, "durian pizza")
	req.NoError(err)
	req.Equal("****** pizza", m.Content)
}
