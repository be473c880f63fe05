package repository

import (
	"context"
	"time"

	"recipehub/internal/domain/entity"
)

// Every read method here filters out soft-deleted notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	// FindLatestLive returns the newest live notification matching the triple, or NOT_FOUND.
	FindLatestLive(ctx context.Context, recipientID, notificationType, postID string) (*entity.Notification, error)
	// CollapseOrCreate atomically folds notification into the newest live one
	// with the same recipient, type and post (rewriting actor and createdAt and
	// resetting read), or inserts it when none is live. It returns the id of the
	// row now carrying the event.
	CollapseOrCreate(ctx context.Context, notification *entity.Notification) (id string, collapsed bool, err error)
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead flips every live unread notification of the recipient and returns how many.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	SoftDelete(ctx context.Context, id string) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// CountCreatedAfter counts live notifications newer than since. A nil since counts all.
	CountCreatedAfter(ctx context.Context, recipientID string, since *time.Time) (int, error)
	WatchCreatedAfter(ctx context.Context, recipientID string, since *time.Time, fn func(count int)) (Subscription, error)
}

type PreferenceRepository interface {
	Get(ctx context.Context, userID string) (*entity.UserPreferences, error)
	SetLastOpenedNotificationAt(ctx context.Context, userID string, at time.Time) error
}
