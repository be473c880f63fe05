package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/entity"
	"recipehub/internal/infrastructure/ratelimit"
	"recipehub/pkg/errors"
)

func TestSendMessage_FirstContactBecomesRequest(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	msg := f.send(t, id, "x", "hi there")

	c := f.conversation(t, id)
	assert.Equal(t, map[string]bool{"x": false, "y": true}, c.IsRequest)
	assert.Equal(t, 1, c.UnreadCount["y"])
	assert.Equal(t, 0, c.UnreadCount["x"])
	assert.Equal(t, "hi there", c.LastMessage)
	assert.Equal(t, msg.ID, c.LastMessageID)
	require.NotNil(t, c.RequestTo)
	assert.Equal(t, "y", *c.RequestTo)
	assert.Equal(t, entity.MessageStatusSent, msg.Status)

	requests := f.liveNotifications(t, "y", entity.NotificationMessageRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, "x", requests[0].ActorUserID)
	assert.Equal(t, id, requests[0].MessageThreadID)
}

func TestSendMessage_SenderEngagesWithoutFollowing(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "y", "x")
	id := f.ensure(t, "x", "y")
	require.True(t, f.conversation(t, id).IsRequest["x"])

	f.send(t, id, "x", "hello")

	assert.False(t, f.conversation(t, id).IsRequest["x"])
	assert.False(t, f.conversation(t, id).IsRequest["y"])
}

func TestSendMessage_ReplyEngagesRecipient(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "hello")
	f.follow(t, "y", "x")

	f.send(t, id, "y", "oh hi")

	c := f.conversation(t, id)
	assert.False(t, c.IsRequest["y"])
	assert.True(t, c.HasEngaged["y"])
	assert.Equal(t, 1, c.UnreadCount["x"])
}

func TestSendMessage_NotifiesOnlyWhileRecipientIsRequest(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.send(t, id, "x", "one")
	f.send(t, id, "x", "two")
	assert.Len(t, f.liveNotifications(t, "y", entity.NotificationMessageRequest), 2)

	_, err := f.conversations.AcceptMessageRequest(f.ctx, id, "y")
	require.NoError(t, err)
	f.send(t, id, "x", "three")

	assert.Len(t, f.liveNotifications(t, "y", entity.NotificationMessageRequest), 2)
}

func TestSendMessage_FollowedSenderIsNotARequest(t *testing.T) {
	f := newFixture(t)
	f.follow(t, "y", "x")
	id := f.ensure(t, "x", "y")

	f.send(t, id, "x", "hello")

	c := f.conversation(t, id)
	assert.False(t, c.IsRequest["y"])
	assert.Nil(t, c.RequestTo)
	assert.Empty(t, f.liveNotifications(t, "y", entity.NotificationMessageRequest))
}

func TestSendMessage_RequiresContent(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "   "})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, total, err := f.store.Messages().List(f.ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, 0, f.conversation(t, id).UnreadCount["y"])
}

func TestSendMessage_AttachmentOnlyUsesPlaceholderPreview(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Attachments: []string{"chat/x/photo.jpg"}})
	require.NoError(t, err)

	assert.Equal(t, entity.AttachmentPreview, f.conversation(t, id).LastMessage)
}

func TestSendMessage_NonParticipant(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	_, err := f.messages.SendMessage(f.ctx, id, "mallory", SendMessageInput{Text: "hey"})
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestSendMessage_NotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.store.InjectFault("notifications.create", assert.AnError)

	msg, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "hello"})
	require.NoError(t, err)

	_, err = f.store.Messages().GetByID(f.ctx, id, msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.conversation(t, id).UnreadCount["y"])
	assert.Empty(t, f.liveNotifications(t, "y", ""))
}

func TestSendMessage_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	f.store.InjectFault("messages.create", assert.AnError)

	_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "hello"})
	assert.True(t, errors.Is(err, errors.CodeInternal))
	assert.Equal(t, 0, f.conversation(t, id).UnreadCount["y"])
}

func TestSendMessage_CreationTimesStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	var last time.Time
	for i := 0; i < 4; i++ {
		// Clock frozen on purpose.
		msg, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "same instant"})
		require.NoError(t, err)
		assert.True(t, msg.CreatedAt.After(last), "message %d", i)
		last = msg.CreatedAt
	}
}

func TestSendMessage_ConcurrentSendsKeepEveryIncrement(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	const senders = 50
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, senders, f.conversation(t, id).UnreadCount["y"])
	assert.Equal(t, 0, f.conversation(t, id).UnreadCount["x"])
	_, total, err := f.store.Messages().List(f.ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(senders), total)
}

func TestSendMessage_RateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: {PerMinute: 1, Burst: 1},
	})
	f.messages = NewMessageUseCase(f.store.Conversations(), f.store.Messages(), f.store.Relationships(), f.notifications, nil, limiter)
	id := f.ensure(t, "x", "y")

	_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "one"})
	require.NoError(t, err)
	_, err = f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "two"})
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}

func TestEditMessage_PreviewFollowsOnlyNewest(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	older := f.send(t, id, "x", "first")
	newest := f.send(t, id, "x", "second")

	edited, err := f.messages.EditMessage(f.ctx, id, older.ID, "x", "first, edited")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.NotNil(t, edited.EditedAt)
	assert.Equal(t, "second", f.conversation(t, id).LastMessage)

	_, err = f.messages.EditMessage(f.ctx, id, newest.ID, "x", "second, edited")
	require.NoError(t, err)
	assert.Equal(t, "second, edited", f.conversation(t, id).LastMessage)
}

func TestEditMessage_OnlySender(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	msg := f.send(t, id, "x", "mine")

	_, err := f.messages.EditMessage(f.ctx, id, msg.ID, "y", "yours now")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.messages.EditMessage(f.ctx, id, msg.ID, "x", "")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestDeleteMessage_RederivesPreview(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	first := f.send(t, id, "x", "first")
	second := f.send(t, id, "y", "second")
	third := f.send(t, id, "x", "third")

	require.NoError(t, f.messages.DeleteMessage(f.ctx, id, third.ID, "x"))
	c := f.conversation(t, id)
	assert.Equal(t, "second", c.LastMessage)
	assert.Equal(t, second.ID, c.LastMessageID)
	require.NotNil(t, c.LastMessageTime)
	assert.True(t, second.CreatedAt.Equal(*c.LastMessageTime))

	require.NoError(t, f.messages.DeleteMessage(f.ctx, id, second.ID, "y"))
	require.NoError(t, f.messages.DeleteMessage(f.ctx, id, first.ID, "x"))

	c = f.conversation(t, id)
	assert.Empty(t, c.LastMessage)
	assert.Empty(t, c.LastMessageID)
	assert.Nil(t, c.LastMessageTime)
}

func TestDeleteMessage_OnlySender(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	msg := f.send(t, id, "x", "mine")

	err := f.messages.DeleteMessage(f.ctx, id, msg.ID, "y")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestRefreshLastMessage_HealsStalePreview(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	msg := f.send(t, id, "x", "real tail")

	stale := entity.LastMessageProjection{MessageID: "gone", Text: "stale"}
	require.NoError(t, f.store.Conversations().Update(f.ctx, id, &entity.ConversationPatch{LastMessage: &stale}))

	healed, err := f.messages.RefreshLastMessage(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "real tail", healed.LastMessage)
	assert.Equal(t, msg.ID, healed.LastMessageID)

	before := f.conversation(t, id).UpdatedAt
	f.clock.Advance(time.Minute)
	_, err = f.messages.RefreshLastMessage(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, f.conversation(t, id).UpdatedAt)
}

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	msg := f.send(t, id, "x", "react to me")

	view, err := f.messages.ToggleReaction(f.ctx, id, msg.ID, "x", "heart")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"heart": 1}, view.Reactions)
	assert.Equal(t, "heart", view.MyReaction)

	view, err = f.messages.ToggleReaction(f.ctx, id, msg.ID, "y", "heart")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"heart": 2}, view.Reactions)

	view, err = f.messages.ToggleReaction(f.ctx, id, msg.ID, "x", "heart")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"heart": 1}, view.Reactions)
	assert.Empty(t, view.MyReaction)

	view, err = f.messages.ToggleReaction(f.ctx, id, msg.ID, "x", "laugh")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"heart": 1, "laugh": 1}, view.Reactions)

	view, err = f.messages.ToggleReaction(f.ctx, id, msg.ID, "x", "wow")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"heart": 1, "wow": 1}, view.Reactions)
	assert.Equal(t, "wow", view.MyReaction)

	_, err = f.messages.ToggleReaction(f.ctx, id, msg.ID, "x", "")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestHideMessageForViewer(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")
	hidden := f.send(t, id, "x", "embarrassing")
	f.send(t, id, "x", "fine")

	require.NoError(t, f.messages.HideMessageForViewer(f.ctx, id, hidden.ID, "y"))

	forY, _, err := f.messages.ListMessages(f.ctx, id, "y", 0, 0)
	require.NoError(t, err)
	require.Len(t, forY, 1)
	assert.Equal(t, "fine", forY[0].Text)

	forX, _, err := f.messages.ListMessages(f.ctx, id, "x", 0, 0)
	require.NoError(t, err)
	assert.Len(t, forX, 2)
}

type prefixResolver struct {
	prefix string
}

func (r prefixResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "bad/") {
		return "", assert.AnError
	}
	return r.prefix + ref, nil
}

func TestListMessages_ResolvesAttachmentsInOrder(t *testing.T) {
	f := newFixture(t)
	f.messages = NewMessageUseCase(f.store.Conversations(), f.store.Messages(), f.store.Relationships(), f.notifications, prefixResolver{prefix: "https://cdn/"}, nil)
	f.messages.SetClock(f.clock.Now)
	id := f.ensure(t, "x", "y")

	_, err := f.messages.SendMessage(f.ctx, id, "x", SendMessageInput{Text: "pics", Attachments: []string{"a.jpg", "bad/b.jpg"}})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	f.send(t, id, "y", "nice")

	views, total, err := f.messages.ListMessages(f.ctx, id, "y", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, views, 2)
	assert.Equal(t, []string{"https://cdn/a.jpg", "bad/b.jpg"}, views[0].Attachments)
	assert.Equal(t, "nice", views[1].Text)
}

func TestListMessages_NonParticipant(t *testing.T) {
	f := newFixture(t)
	id := f.ensure(t, "x", "y")

	_, _, err := f.messages.ListMessages(f.ctx, id, "mallory", 0, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}
