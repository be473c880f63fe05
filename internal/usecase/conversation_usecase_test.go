package usecase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/entity"
	"recipehub/pkg/errors"
)

func TestEnsureConversation_SameIDInBothOrders(t *testing.T) {
	f := newFixture(t)

	first := f.ensure(t, "alice", "bob")
	second := f.ensure(t, "bob", "alice")
	third := f.ensure(t, "alice", "bob")

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)

	list, err := f.store.Conversations().ListByParticipant(f.ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureConversation_ConcurrentCallersShareOneRecord(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			id, err := f.conversations.EnsureConversation(f.ctx, a, b)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := f.store.Conversations().ListByParticipant(f.ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureConversation_SeparatorInIdentityKeepsPairsApart(t *testing.T) {
	f := newFixture(t)

	first := f.ensure(t, "a_b", "c")
	second := f.ensure(t, "a", "b_c")
	require.NotEqual(t, first, second)

	assert.True(t, f.conversation(t, first).MatchesPair("a_b", "c"))
	assert.True(t, f.conversation(t, second).MatchesPair("a", "b_c"))

	_, err := f.messages.SendMessage(f.ctx, second, "a", SendMessageInput{Text: "hi"})
	assert.NoError(t, err)
}

func TestEnsureConversation_ConflictWithForeignRecordFails(t *testing.T) {
	f := newFixture(t)
	foreign := entity.NewConversation("x", "y", false, false, f.clock.Now())
	foreign.ID = entity.ConversationIDFor("a", "b")
	require.NoError(t, f.store.Conversations().Create(f.ctx, foreign))

	id, err := f.conversations.EnsureConversation(f.ctx, "a", "b")
	assert.True(t, errors.Is(err, errors.CodeConflict))
	assert.Empty(t, id)
	assert.True(t, f.conversation(t, foreign.ID).MatchesPair("x", "y"))
}

func TestEnsureConversation_InitialFlagsFollowFollowState(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "bob", "alice")

	id := f.ensure(t, "alice", "bob")
	c := f.conversation(t, id)

	assert.True(t, c.IsRequest["alice"])
	assert.False(t, c.IsRequest["bob"])
	assert.Equal(t, entity.RequestStatusPending, c.RequestStatus)
	assert.Equal(t, 0, c.UnreadCount["alice"])
	assert.Equal(t, 0, c.UnreadCount["bob"])
	assert.Empty(t, c.LastMessage)
	assert.Nil(t, c.LastMessageTime)
}

func TestEnsureConversation_RejectsInvalidPairs(t *testing.T) {
	f := newFixture(t)

	for _, pair := range [][2]string{{"", "bob"}, {"alice", ""}, {"alice", "alice"}} {
		_, err := f.conversations.EnsureConversation(f.ctx, pair[0], pair[1])
		assert.True(t, errors.Is(err, errors.CodeBadRequest), "pair %v", pair)
	}

	list, err := f.store.Conversations().ListByParticipant(f.ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEnsureConversation_MatchesExactPair(t *testing.T) {
	f := newFixture(t)

	withBob := f.ensure(t, "alice", "bob")
	withCarol := f.ensure(t, "alice", "carol")

	assert.NotEqual(t, withBob, withCarol)
	assert.Equal(t, withCarol, f.ensure(t, "carol", "alice"))
}

func TestEnsureConversation_FollowingLaterClearsRequest(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "alice", "bob")
	require.True(t, f.conversation(t, id).IsRequest["alice"])

	f.follow(t, "alice", "bob")

	assert.False(t, f.conversation(t, id).IsRequest["alice"])
	assert.True(t, f.conversation(t, id).IsRequest["bob"])
}

func TestStickyEngagement_UnfollowDoesNotRevert(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "alice", "bob")
	id := f.ensure(t, "alice", "bob")
	require.False(t, f.conversation(t, id).IsRequest["alice"])

	require.NoError(t, f.relationships.UnfollowUser(f.ctx, "alice", "bob"))
	assert.False(t, f.conversation(t, id).IsRequest["alice"])

	f.ensure(t, "bob", "alice")
	assert.False(t, f.conversation(t, id).IsRequest["alice"])
	assert.True(t, f.conversation(t, id).HasEngaged["alice"])
}

func TestStickyEngagement_ReplyLatchSurvivesUnfollow(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "alice", "bob")
	f.send(t, id, "alice", "hi")
	f.send(t, id, "bob", "hello back")

	f.follow(t, "bob", "alice")
	require.NoError(t, f.relationships.UnfollowUser(f.ctx, "bob", "alice"))

	c := f.conversation(t, id)
	assert.False(t, c.IsRequest["alice"])
	assert.False(t, c.IsRequest["bob"])
}

func TestAcceptMessageRequest(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "hello")

	updated, err := f.conversations.AcceptMessageRequest(f.ctx, id, "y")
	require.NoError(t, err)

	assert.False(t, updated.IsRequest["y"])
	assert.False(t, updated.IsRequest["x"])
	assert.Equal(t, entity.RequestStatusAccepted, updated.RequestStatus)
	require.NotNil(t, updated.RequestTo)
	assert.Equal(t, "y", *updated.RequestTo)

	// The latch holds even though y never followed x.
	require.NoError(t, f.conversations.ReconcilePair(f.ctx, "x", "y"))
	assert.False(t, f.conversation(t, id).IsRequest["y"])
}

func TestAcceptMessageRequest_MutualFollowClearsRequestTo(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "hello")
	f.follow(t, "x", "y")
	f.follow(t, "y", "x")

	updated, err := f.conversations.AcceptMessageRequest(f.ctx, id, "y")
	require.NoError(t, err)
	assert.Nil(t, updated.RequestTo)
}

func TestAcceptMessageRequest_NonParticipant(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	_, err := f.conversations.AcceptMessageRequest(f.ctx, id, "mallory")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestIgnoreMessageRequest_OnlySetsStatus(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "hello")
	before := f.conversation(t, id)

	require.NoError(t, f.conversations.IgnoreMessageRequest(f.ctx, id, "y"))

	after := f.conversation(t, id)
	assert.Equal(t, entity.RequestStatusIgnored, after.RequestStatus)
	assert.Equal(t, before.IsRequest, after.IsRequest)
	assert.Equal(t, before.UnreadCount, after.UnreadCount)
}

func TestMarkMessagesAsSeen_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "one")
	f.send(t, id, "x", "two")
	f.send(t, id, "y", "reply")

	require.NoError(t, f.conversations.MarkMessagesAsSeen(f.ctx, id, "y"))
	c := f.conversation(t, id)
	assert.Equal(t, 0, c.UnreadCount["y"])
	assert.Equal(t, 1, c.UnreadCount["x"])
	assert.Contains(t, c.LastSeenTimestamp, "y")
	assert.NotContains(t, c.LastSeenTimestamp, "x")

	require.NoError(t, f.conversations.MarkMessagesAsSeen(f.ctx, id, "y"))
	assert.Equal(t, 0, f.conversation(t, id).UnreadCount["y"])

	messages, _, err := f.store.Messages().List(f.ctx, id, 0, 0)
	require.NoError(t, err)
	for _, m := range messages {
		if m.SenderID == "x" {
			assert.Equal(t, []string{"y"}, m.SeenBy)
		} else {
			assert.Empty(t, m.SeenBy)
		}
	}
}

func TestListenToUnreadCount(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	other := f.ensure(t, "z", "y")
	baseline := f.store.ActiveWatchers()

	var (
		mu     sync.Mutex
		counts []int
	)
	last := func() int {
		mu.Lock()
		defer mu.Unlock()
		return counts[len(counts)-1]
	}
	sub, err := f.conversations.ListenToUnreadCount(f.ctx, "y", func(count int) {
		mu.Lock()
		counts = append(counts, count)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 0, last())

	f.send(t, id, "x", "one")
	f.send(t, id, "x", "two")
	assert.Equal(t, 1, last())

	f.send(t, other, "z", "hey")
	assert.Equal(t, 2, last())

	require.NoError(t, f.conversations.MarkMessagesAsSeen(f.ctx, id, "y"))
	assert.Equal(t, 1, last())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, baseline, f.store.ActiveWatchers())

	mu.Lock()
	delivered := len(counts)
	mu.Unlock()
	f.send(t, id, "x", "after")
	mu.Lock()
	assert.Equal(t, delivered, len(counts))
	mu.Unlock()
}

func TestDeleteConversation_ChunksMessageDeletes(t *testing.T) {
	f := newFixture(t)
	f.conversations = NewConversationUseCase(f.store.Conversations(), f.store.Messages(), f.store.Relationships(), f.directory, 2)
	id := f.ensure(t, "x", "y")
	for i := 0; i < 5; i++ {
		f.send(t, id, "x", "msg")
	}

	require.NoError(t, f.conversations.DeleteConversation(f.ctx, id, "y"))

	assert.Equal(t, 3, f.store.DeleteBatches())
	_, err := f.store.Conversations().GetByID(f.ctx, id)
	assert.True(t, errors.IsNotFound(err))
	messages, total, err := f.store.Messages().List(f.ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, int64(0), total)
}

func TestDeleteConversation_StopsOnBatchFailure(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "msg")
	f.store.InjectFault("messages.delete_batch", assert.AnError)

	err := f.conversations.DeleteConversation(f.ctx, id, "x")
	require.Error(t, err)

	// The record is kept so the purge can be retried.
	f.conversation(t, id)
}

func TestDeleteConversation_NonParticipant(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	err := f.conversations.DeleteConversation(f.ctx, id, "mallory")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	f.conversation(t, id)
}

func TestListConversations_SplitsInboxAndRequests(t *testing.T) {
	f := newFixture(t)
	f.directory.SetProfile("x", "Xavier", "https://img/x.png")
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "hello")

	requests, err := f.conversations.ListConversations(f.ctx, "y", FolderRequests)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.True(t, requests[0].IsRequestForViewer)
	assert.Equal(t, 1, requests[0].ViewerUnread)
	assert.Equal(t, "Xavier", requests[0].OtherUser.DisplayName)

	inbox, err := f.conversations.ListConversations(f.ctx, "y", FolderInbox)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	senderInbox, err := f.conversations.ListConversations(f.ctx, "x", FolderInbox)
	require.NoError(t, err)
	require.Len(t, senderInbox, 1)
	assert.Equal(t, entity.PlaceholderDisplayName, senderInbox[0].OtherUser.DisplayName)
	assert.Equal(t, entity.DefaultAvatarURL, senderInbox[0].OtherUser.AvatarURL)
}

func TestListConversations_NewestActivityFirst(t *testing.T) {
	f := newFixture(t)
	older := f.ensure(t, "x", "y")
	newer := f.ensure(t, "x", "z")
	f.send(t, newer, "x", "first")
	f.send(t, older, "x", "second")

	list, err := f.conversations.ListConversations(f.ctx, "x", FolderAll)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older, list[0].ID)
	assert.Equal(t, newer, list[1].ID)
}

func TestListConversations_RejectsUnknownFolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.conversations.ListConversations(f.ctx, "x", "archive")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestReconcilePair_WithoutConversationIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.conversations.ReconcilePair(f.ctx, "x", "y"))
}
