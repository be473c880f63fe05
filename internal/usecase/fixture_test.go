package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recipehub/internal/adapter/repository/memory"
	"recipehub/internal/domain/entity"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx           context.Context
	store         *memory.Store
	directory     *memory.Directory
	clock         *fakeClock
	notifications *NotificationUseCase
	conversations *ConversationUseCase
	messages      *MessageUseCase
	relationships *RelationshipUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clock := newFakeClock()
	store.Now = clock.Now
	directory := memory.NewDirectory()

	notifications := NewNotificationUseCase(store.Notifications(), store.Preferences(), directory, directory)
	notifications.SetClock(clock.Now)

	conversations := NewConversationUseCase(store.Conversations(), store.Messages(), store.Relationships(), directory, MaxBatchSize)
	conversations.SetClock(clock.Now)

	messages := NewMessageUseCase(store.Conversations(), store.Messages(), store.Relationships(), notifications, nil, nil)
	messages.SetClock(clock.Now)

	relationships := NewRelationshipUseCase(store.Relationships(), notifications, conversations, nil)
	relationships.SetClock(clock.Now)

	return &fixture{
		ctx:           context.Background(),
		store:         store,
		directory:     directory,
		clock:         clock,
		notifications: notifications,
		conversations: conversations,
		messages:      messages,
		relationships: relationships,
	}
}

func (f *fixture) conversation(t *testing.T, id string) *entity.Conversation {
	t.Helper()
	c, err := f.store.Conversations().GetByID(f.ctx, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) ensure(t *testing.T, a, b string) string {
	t.Helper()
	id, err := f.conversations.EnsureConversation(f.ctx, a, b)
	require.NoError(t, err)
	return id
}

func (f *fixture) send(t *testing.T, conversationID, senderID, text string) *entity.Message {
	t.Helper()
	m, err := f.messages.SendMessage(f.ctx, conversationID, senderID, SendMessageInput{Text: text})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return m
}

func (f *fixture) follow(t *testing.T, followerID, followingID string) {
	t.Helper()
	require.NoError(t, f.relationships.FollowUser(f.ctx, followerID, followingID))
}

func (f *fixture) liveNotifications(t *testing.T, recipientID, notificationType string) []*entity.Notification {
	t.Helper()
	all, err := f.store.Notifications().ListByRecipient(f.ctx, recipientID, 0)
	require.NoError(t, err)
	var out []*entity.Notification
	for _, n := range all {
		if notificationType == "" || n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}
