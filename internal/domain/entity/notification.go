package entity

import "time"

const (
	NotificationFollow         = "follow"
	NotificationComment        = "comment"
	NotificationLike           = "like"
	NotificationRating         = "rating"
	NotificationMessageRequest = "message_request"
)

// ValidNotificationType reports whether t is one of the feed's event types.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationFollow, NotificationComment, NotificationLike, NotificationRating, NotificationMessageRequest:
		return true
	}
	return false
}

type Notification struct {
	ID              string    `json:"id" firestore:"id"`
	RecipientUserID string    `json:"recipient_user_id" firestore:"recipientUserId"`
	ActorUserID     string    `json:"actor_user_id" firestore:"actorUserId"`
	Type            string    `json:"type" firestore:"type"`
	RelatedPostID   string    `json:"related_post_id,omitempty" firestore:"relatedPostId,omitempty"`
	MessageThreadID string    `json:"message_thread_id,omitempty" firestore:"messageThreadId,omitempty"`
	RatingValue     *int      `json:"rating_value,omitempty" firestore:"ratingValue,omitempty"`
	Read            bool      `json:"read" firestore:"read"`
	Deleted         bool      `json:"-" firestore:"deleted"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt"`
}

// NotificationOptions carries the optional references of a notification.
type NotificationOptions struct {
	RelatedPostID   string
	MessageThreadID string
	RatingValue     *int
}

// IsLive is false once the notification has been soft-deleted.
func (n *Notification) IsLive() bool {
	return !n.Deleted
}

// UserPreferences lives in userPreferences/{userId}.
type UserPreferences struct {
	UserID                   string     `json:"user_id" firestore:"userId"`
	LastOpenedNotificationAt *time.Time `json:"last_opened_notification_at" firestore:"lastOpenedNotificationAt"`
}
