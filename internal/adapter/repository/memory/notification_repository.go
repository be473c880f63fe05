package memory

import (
	"context"
	"sort"
	"time"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type notificationRepository struct {
	store *Store
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if err := r.store.fault("notifications.create"); err != nil {
		return errors.Internal("Failed to create notification", err)
	}

	r.store.mu.Lock()
	r.store.notifications[notification.ID] = cloneNotification(notification)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n, ok := r.store.notifications[id]
	if !ok || n.Deleted {
		return nil, errors.NotFound("Notification", nil)
	}
	return cloneNotification(n), nil
}

// liveLocked returns the recipient's live notifications, newest first.
func (r *notificationRepository) liveLocked(recipientID string) []*entity.Notification {
	var out []*entity.Notification
	for _, n := range r.store.notifications {
		if n.RecipientUserID == recipientID && n.IsLive() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *notificationRepository) FindLatestLive(ctx context.Context, recipientID, notificationType, postID string) (*entity.Notification, error) {
	if err := r.store.fault("notifications.find"); err != nil {
		return nil, errors.Internal("Failed to query notifications", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, n := range r.liveLocked(recipientID) {
		if n.Type == notificationType && n.RelatedPostID == postID {
			return cloneNotification(n), nil
		}
	}
	return nil, errors.NotFound("Notification", nil)
}

func (r *notificationRepository) mutate(id string, fn func(n *entity.Notification)) error {
	r.store.mu.Lock()
	n, ok := r.store.notifications[id]
	if !ok {
		r.store.mu.Unlock()
		return errors.NotFound("Notification", nil)
	}
	fn(n)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *notificationRepository) CollapseOrCreate(ctx context.Context, notification *entity.Notification) (string, bool, error) {
	if err := r.store.fault("notifications.find"); err != nil {
		return "", false, errors.Internal("Failed to query notifications", err)
	}
	createFault := r.store.fault("notifications.create")

	r.store.mu.Lock()
	var target *entity.Notification
	for _, n := range r.liveLocked(notification.RecipientUserID) {
		if n.Type == notification.Type && n.RelatedPostID == notification.RelatedPostID {
			target = n
			break
		}
	}
	if target != nil {
		target.ActorUserID = notification.ActorUserID
		target.CreatedAt = notification.CreatedAt
		target.Read = false
	} else if createFault == nil {
		r.store.notifications[notification.ID] = cloneNotification(notification)
	}
	r.store.mu.Unlock()

	if target == nil && createFault != nil {
		return "", false, errors.Internal("Failed to create notification", createFault)
	}
	r.store.changed()
	if target != nil {
		return target.ID, true, nil
	}
	return notification.ID, false, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.mutate(id, func(n *entity.Notification) {
		n.Read = true
	})
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	r.store.mu.Lock()
	count := 0
	for _, n := range r.liveLocked(recipientID) {
		if !n.Read {
			n.Read = true
			count++
		}
	}
	r.store.mu.Unlock()

	r.store.changed()
	return count, nil
}

func (r *notificationRepository) SoftDelete(ctx context.Context, id string) error {
	return r.mutate(id, func(n *entity.Notification) {
		n.Deleted = true
	})
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entity.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*entity.Notification
	for _, n := range r.liveLocked(recipientID) {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cloneNotification(n))
	}
	return out, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, n := range r.liveLocked(recipientID) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) countAfterLocked(recipientID string, since *time.Time) int {
	count := 0
	for _, n := range r.liveLocked(recipientID) {
		if since == nil || n.CreatedAt.After(*since) {
			count++
		}
	}
	return count
}

func (r *notificationRepository) CountCreatedAfter(ctx context.Context, recipientID string, since *time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.countAfterLocked(recipientID, since), nil
}

func (r *notificationRepository) WatchCreatedAfter(ctx context.Context, recipientID string, since *time.Time, fn func(count int)) (repository.Subscription, error) {
	since = cloneTime(since)
	return r.store.watch(func() {
		r.store.mu.RLock()
		count := r.countAfterLocked(recipientID, since)
		r.store.mu.RUnlock()
		fn(count)
	}), nil
}

type preferenceRepository struct {
	store *Store
}

func (r *preferenceRepository) Get(ctx context.Context, userID string) (*entity.UserPreferences, error) {
	if err := r.store.fault("preferences.get"); err != nil {
		return nil, errors.Internal("Failed to read preferences", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.preferences[userID]
	if !ok {
		return &entity.UserPreferences{UserID: userID}, nil
	}
	return &entity.UserPreferences{UserID: userID, LastOpenedNotificationAt: cloneTime(p.LastOpenedNotificationAt)}, nil
}

func (r *preferenceRepository) SetLastOpenedNotificationAt(ctx context.Context, userID string, at time.Time) error {
	r.store.mu.Lock()
	r.store.preferences[userID] = &entity.UserPreferences{UserID: userID, LastOpenedNotificationAt: &at}
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}
