package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipehub/internal/domain/entity"
	"recipehub/pkg/errors"
)

func like(postID string) entity.NotificationOptions {
	return entity.NotificationOptions{RelatedPostID: postID}
}

func TestCreateNotification_SelfIsNoop(t *testing.T) {
	f := newFixture(t)

	id, err := f.notifications.CreateNotification(f.ctx, "w", "w", entity.NotificationLike, like("p"))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, f.liveNotifications(t, "w", ""))
}

func TestCreateNotification_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.notifications.CreateNotification(f.ctx, "w", "z", "poke", entity.NotificationOptions{})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.notifications.CreateNotification(f.ctx, "", "z", entity.NotificationFollow, entity.NotificationOptions{})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestCreateNotification_LikesCollapsePerPost(t *testing.T) {
	f := newFixture(t)

	first, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationLike, like("p"))
	require.NoError(t, err)
	require.NoError(t, f.notifications.MarkNotificationAsRead(f.ctx, first, "w"))

	f.clock.Advance(time.Minute)
	second, err := f.notifications.CreateNotification(f.ctx, "w", "b", entity.NotificationLike, like("p"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	likes := f.liveNotifications(t, "w", entity.NotificationLike)
	require.Len(t, likes, 1)
	assert.Equal(t, "b", likes[0].ActorUserID)
	assert.False(t, likes[0].Read)
	assert.True(t, likes[0].CreatedAt.Equal(f.clock.Now()))

	_, err = f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationLike, like("other-post"))
	require.NoError(t, err)
	assert.Len(t, f.liveNotifications(t, "w", entity.NotificationLike), 2)
}

func TestCreateNotification_RepeatedLikeUnlikeLeavesOneLive(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.notifications.CreateNotification(f.ctx, "w", "z", entity.NotificationLike, like("p"))
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
		if i < 2 {
			require.NoError(t, f.notifications.RemoveLikeNotification(f.ctx, "w", "z", "p"))
		}
	}

	likes := f.liveNotifications(t, "w", entity.NotificationLike)
	require.Len(t, likes, 1)
	assert.Equal(t, "z", likes[0].ActorUserID)
}

func TestCreateNotification_ConcurrentLikesKeepOneLiveRow(t *testing.T) {
	f := newFixture(t)

	const likers = 30
	ids := make([]string, likers)
	var wg sync.WaitGroup
	for i := 0; i < likers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.notifications.CreateNotification(f.ctx, "w", fmt.Sprintf("liker-%d", i), entity.NotificationLike, like("p"))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	likes := f.liveNotifications(t, "w", entity.NotificationLike)
	require.Len(t, likes, 1)
	for _, id := range ids {
		assert.Equal(t, likes[0].ID, id)
	}
}

func TestCreateNotification_LikeStoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.store.InjectFault("notifications.create", assert.AnError)

	id, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationLike, like("p"))
	assert.True(t, errors.Is(err, errors.CodeInternal))
	assert.Empty(t, id)
	assert.Empty(t, f.liveNotifications(t, "w", ""))
}

func TestRemoveLikeNotification_KeepsOtherActorsLike(t *testing.T) {
	f := newFixture(t)
	_, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationLike, like("p"))
	require.NoError(t, err)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "b", entity.NotificationLike, like("p"))
	require.NoError(t, err)

	require.NoError(t, f.notifications.RemoveLikeNotification(f.ctx, "w", "a", "p"))
	assert.Len(t, f.liveNotifications(t, "w", entity.NotificationLike), 1)

	require.NoError(t, f.notifications.RemoveLikeNotification(f.ctx, "w", "b", "p"))
	assert.Empty(t, f.liveNotifications(t, "w", entity.NotificationLike))

	assert.NoError(t, f.notifications.RemoveLikeNotification(f.ctx, "w", "b", "p"))
}

func TestCreateNotification_CommentsDoNotCollapse(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		_, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationComment, like("p"))
		require.NoError(t, err)
	}
	assert.Len(t, f.liveNotifications(t, "w", entity.NotificationComment), 2)
}

func TestBadgeAndUnreadDivergeAfterOpeningPanel(t *testing.T) {
	f := newFixture(t)
	_, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "b", entity.NotificationComment, like("p"))
	require.NoError(t, err)

	counts, err := f.notifications.Counts(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, &NotificationCounts{Badge: 2, Unread: 2}, counts)

	f.clock.Advance(time.Minute)
	_, err = f.notifications.OpenNotificationPanel(f.ctx, "w")
	require.NoError(t, err)

	counts, err = f.notifications.Counts(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, &NotificationCounts{Badge: 0, Unread: 2}, counts)

	f.clock.Advance(time.Minute)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "c", entity.NotificationRating, entity.NotificationOptions{})
	require.NoError(t, err)

	marked, err := f.notifications.MarkAllNotificationsAsRead(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	counts, err = f.notifications.Counts(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, &NotificationCounts{Badge: 1, Unread: 0}, counts)
}

func TestDeleteNotification_FilteredEverywhere(t *testing.T) {
	f := newFixture(t)
	readID, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	unreadID, err := f.notifications.CreateNotification(f.ctx, "w", "b", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	require.NoError(t, f.notifications.MarkNotificationAsRead(f.ctx, readID, "w"))

	require.NoError(t, f.notifications.DeleteNotification(f.ctx, readID, "w"))
	require.NoError(t, f.notifications.DeleteNotification(f.ctx, unreadID, "w"))

	list, err := f.notifications.ListNotifications(f.ctx, "w", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	counts, err := f.notifications.Counts(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, &NotificationCounts{}, counts)

	err = f.notifications.MarkNotificationAsRead(f.ctx, readID, "w")
	assert.True(t, errors.IsNotFound(err))
}

func TestNotificationOwnership(t *testing.T) {
	f := newFixture(t)
	id, err := f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)

	assert.True(t, errors.Is(f.notifications.MarkNotificationAsRead(f.ctx, id, "a"), errors.CodeForbidden))
	assert.True(t, errors.Is(f.notifications.DeleteNotification(f.ctx, id, "a"), errors.CodeForbidden))
}

func TestListNotifications_Enrichment(t *testing.T) {
	f := newFixture(t)
	f.directory.SetProfile("alice", "Alice", "https://img/alice.png")
	f.directory.SetPostTitle("p1", "Pasta")
	rating := 5

	_, err := f.notifications.CreateNotification(f.ctx, "w", "alice", entity.NotificationLike, like("p1"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "alice", entity.NotificationRating, entity.NotificationOptions{RelatedPostID: "p1", RatingValue: &rating})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	list, err := f.notifications.ListNotifications(f.ctx, "w", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, `Alice rated "Pasta" 5 stars`, list[0].Text)
	assert.Equal(t, `Alice liked "Pasta"`, list[1].Text)
	assert.Equal(t, "Pasta", list[1].PostTitle)
	assert.Equal(t, "https://img/alice.png", list[1].Actor.AvatarURL)
	assert.Equal(t, "1 minute ago", list[1].Age)
}

func TestListNotifications_DegradesToPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.directory.Fail(assert.AnError)

	_, err := f.notifications.CreateNotification(f.ctx, "w", "alice", entity.NotificationComment, like("p1"))
	require.NoError(t, err)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "bob", entity.NotificationMessageRequest, entity.NotificationOptions{MessageThreadID: "t"})
	require.NoError(t, err)

	list, err := f.notifications.ListNotifications(f.ctx, "w", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	texts := []string{list[0].Text, list[1].Text}
	assert.Contains(t, texts, "User commented on your recipe")
	assert.Contains(t, texts, "User sent you a message request")
	for _, n := range list {
		assert.Equal(t, entity.PlaceholderDisplayName, n.Actor.DisplayName)
		assert.Equal(t, entity.DefaultAvatarURL, n.Actor.AvatarURL)
	}
}

type countRecorder struct {
	mu     sync.Mutex
	values []int
}

func (r *countRecorder) record(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *countRecorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func (r *countRecorder) last() int {
	values := r.snapshot()
	return values[len(values)-1]
}

func TestBadgeWatcher_ResubscribesWhenWatermarkMoves(t *testing.T) {
	f := newFixture(t)
	baseline := f.store.ActiveWatchers()
	rec := &countRecorder{}

	watcher, err := f.notifications.WatchBadge(f.ctx, "w", rec.record)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.last())
	assert.Equal(t, baseline+1, f.store.ActiveWatchers())

	_, err = f.notifications.CreateNotification(f.ctx, "w", "a", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.last())

	f.clock.Advance(time.Minute)
	_, err = f.notifications.OpenNotificationPanel(f.ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.last())
	assert.Equal(t, baseline+1, f.store.ActiveWatchers())

	before := len(rec.snapshot())
	f.clock.Advance(time.Minute)
	_, err = f.notifications.CreateNotification(f.ctx, "w", "b", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	assert.Len(t, rec.snapshot(), before+1)
	assert.Equal(t, 1, rec.last())

	watcher.Unsubscribe()
	watcher.Unsubscribe()
	assert.Equal(t, baseline, f.store.ActiveWatchers())
	assert.Empty(t, f.notifications.watchersOf("w"))

	before = len(rec.snapshot())
	_, err = f.notifications.CreateNotification(f.ctx, "w", "c", entity.NotificationFollow, entity.NotificationOptions{})
	require.NoError(t, err)
	assert.Len(t, rec.snapshot(), before)
}

func TestBadgeWatcher_FollowChangeRefreshes(t *testing.T) {
	f := newFixture(t)
	rec := &countRecorder{}
	watcher, err := f.notifications.WatchBadge(f.ctx, "w", rec.record)
	require.NoError(t, err)
	defer watcher.Unsubscribe()

	sub, err := f.relationships.OnFollowChange(f.ctx, "a", "w", func(bool) {
		assert.NoError(t, watcher.FollowChanged(f.ctx))
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	f.follow(t, "a", "w")
	assert.Equal(t, 1, rec.last())
}
