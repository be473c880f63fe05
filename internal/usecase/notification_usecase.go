package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/metrics"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
)

const defaultNotificationLimit = 50

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	preferenceRepo   repository.PreferenceRepository
	profiles         service.ProfileProvider
	posts            service.PostProvider
	now              Clock

	watchMu  sync.Mutex
	watchers map[string]map[*BadgeWatcher]struct{}
}

func NewNotificationUseCase(
	notificationRepo repository.NotificationRepository,
	preferenceRepo repository.PreferenceRepository,
	profiles service.ProfileProvider,
	posts service.PostProvider,
) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		preferenceRepo:   preferenceRepo,
		profiles:         profiles,
		posts:            posts,
		now:              systemClock,
		watchers:         make(map[string]map[*BadgeWatcher]struct{}),
	}
}

// SetClock replaces the time source.
func (uc *NotificationUseCase) SetClock(clock Clock) {
	uc.now = clock
}

// NotificationView is a feed item decorated for display.
type NotificationView struct {
	*entity.Notification
	Actor     *entity.Profile `json:"actor"`
	PostTitle string          `json:"post_title,omitempty"`
	Text      string          `json:"text"`
	Age       string          `json:"age"`
}

type NotificationCounts struct {
	Badge  int `json:"badge"`
	Unread int `json:"unread"`
}

// CreateNotification inserts a feed item, or folds a repeat like into the
// live one for the same post. Self-notifications are dropped and return "".
func (uc *NotificationUseCase) CreateNotification(ctx context.Context, recipientID, actorID, notificationType string, opts entity.NotificationOptions) (string, error) {
	if recipientID == "" || actorID == "" {
		return "", errors.BadRequest("Recipient and actor are required", nil)
	}
	if !entity.ValidNotificationType(notificationType) {
		return "", errors.BadRequest(fmt.Sprintf("Unknown notification type %q", notificationType), nil)
	}
	if recipientID == actorID {
		return "", nil
	}

	notification := &entity.Notification{
		ID:              uuid.New().String(),
		RecipientUserID: recipientID,
		ActorUserID:     actorID,
		Type:            notificationType,
		RelatedPostID:   opts.RelatedPostID,
		MessageThreadID: opts.MessageThreadID,
		RatingValue:     opts.RatingValue,
		Read:            false,
		Deleted:         false,
		CreatedAt:       uc.now(),
	}

	if notificationType == entity.NotificationLike && opts.RelatedPostID != "" {
		id, collapsed, err := uc.notificationRepo.CollapseOrCreate(ctx, notification)
		if err != nil {
			logger.Error("CreateNotification Error: Failed to record like for %s/%s: %v", recipientID, opts.RelatedPostID, err)
			return "", err
		}
		if collapsed {
			metrics.NotificationsCollapsed.Inc()
		} else {
			metrics.NotificationsCreated.WithLabelValues(notificationType).Inc()
		}
		return id, nil
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("CreateNotification Error: Failed to insert %s for %s: %v", notificationType, recipientID, err)
		return "", err
	}

	metrics.NotificationsCreated.WithLabelValues(notificationType).Inc()
	return notification.ID, nil
}

// RemoveLikeNotification retracts the live like for a post, but only while
// the un-liker is still the actor shown on it.
func (uc *NotificationUseCase) RemoveLikeNotification(ctx context.Context, recipientID, actorID, postID string) error {
	if recipientID == "" || actorID == "" || postID == "" {
		return errors.BadRequest("Recipient, actor and post are required", nil)
	}

	existing, err := uc.notificationRepo.FindLatestLive(ctx, recipientID, entity.NotificationLike, postID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ActorUserID != actorID {
		return nil
	}
	return uc.notificationRepo.SoftDelete(ctx, existing.ID)
}

func (uc *NotificationUseCase) ownedNotification(ctx context.Context, id, viewerID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.RecipientUserID != viewerID {
		return nil, errors.Forbidden("You do not have access to this notification", nil)
	}
	return notification, nil
}

func (uc *NotificationUseCase) MarkNotificationAsRead(ctx context.Context, id, viewerID string) error {
	if _, err := uc.ownedNotification(ctx, id, viewerID); err != nil {
		return err
	}
	return uc.notificationRepo.MarkRead(ctx, id)
}

func (uc *NotificationUseCase) MarkAllNotificationsAsRead(ctx context.Context, viewerID string) (int, error) {
	if viewerID == "" {
		return 0, errors.BadRequest("Viewer is required", nil)
	}
	return uc.notificationRepo.MarkAllRead(ctx, viewerID)
}

// OpenNotificationPanel advances the badge watermark to now. Item read flags
// are left alone. Live badge watchers of the viewer re-subscribe.
func (uc *NotificationUseCase) OpenNotificationPanel(ctx context.Context, viewerID string) (time.Time, error) {
	if viewerID == "" {
		return time.Time{}, errors.BadRequest("Viewer is required", nil)
	}

	now := uc.now()
	if err := uc.preferenceRepo.SetLastOpenedNotificationAt(ctx, viewerID, now); err != nil {
		return time.Time{}, err
	}

	for _, w := range uc.watchersOf(viewerID) {
		if err := w.WatermarkMoved(ctx, now); err != nil {
			sideEffectFailed("OpenNotificationPanel", "badge_resubscribe", viewerID, err)
		}
	}
	return now, nil
}

// BadgeCount counts live notifications created after the last panel open.
func (uc *NotificationUseCase) BadgeCount(ctx context.Context, viewerID string) (int, error) {
	prefs, err := uc.preferenceRepo.Get(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	return uc.notificationRepo.CountCreatedAfter(ctx, viewerID, prefs.LastOpenedNotificationAt)
}

// UnreadCount counts live notifications whose read flag is still false.
func (uc *NotificationUseCase) UnreadCount(ctx context.Context, viewerID string) (int, error) {
	return uc.notificationRepo.CountUnread(ctx, viewerID)
}

func (uc *NotificationUseCase) Counts(ctx context.Context, viewerID string) (*NotificationCounts, error) {
	badge, err := uc.BadgeCount(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	unread, err := uc.UnreadCount(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return &NotificationCounts{Badge: badge, Unread: unread}, nil
}

func (uc *NotificationUseCase) DeleteNotification(ctx context.Context, id, viewerID string) error {
	if _, err := uc.ownedNotification(ctx, id, viewerID); err != nil {
		return err
	}
	return uc.notificationRepo.SoftDelete(ctx, id)
}

func (uc *NotificationUseCase) ListNotifications(ctx context.Context, viewerID string, limit int) ([]*NotificationView, error) {
	if viewerID == "" {
		return nil, errors.BadRequest("Viewer is required", nil)
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := uc.notificationRepo.ListByRecipient(ctx, viewerID, limit)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	views := make([]*NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, uc.decorate(ctx, n, now))
	}
	return views, nil
}

func (uc *NotificationUseCase) decorate(ctx context.Context, n *entity.Notification, now time.Time) *NotificationView {
	view := &NotificationView{
		Notification: n,
		Actor:        profileOrPlaceholder(ctx, uc.profiles, n.ActorUserID),
		Age:          humanize.RelTime(n.CreatedAt, now, "ago", "from now"),
	}

	subject := entity.PlaceholderPostTitle
	if n.RelatedPostID != "" {
		title, ok := postTitleOrPlaceholder(ctx, uc.posts, n.RelatedPostID)
		if ok {
			view.PostTitle = title
			subject = fmt.Sprintf("%q", title)
		}
	}

	name := view.Actor.DisplayName
	switch n.Type {
	case entity.NotificationFollow:
		view.Text = fmt.Sprintf("%s started following you", name)
	case entity.NotificationLike:
		view.Text = fmt.Sprintf("%s liked %s", name, subject)
	case entity.NotificationComment:
		view.Text = fmt.Sprintf("%s commented on %s", name, subject)
	case entity.NotificationRating:
		if n.RatingValue != nil {
			view.Text = fmt.Sprintf("%s rated %s %d stars", name, subject, *n.RatingValue)
		} else {
			view.Text = fmt.Sprintf("%s rated %s", name, subject)
		}
	case entity.NotificationMessageRequest:
		view.Text = fmt.Sprintf("%s sent you a message request", name)
	default:
		view.Text = name
	}
	return view
}

func (uc *NotificationUseCase) track(w *BadgeWatcher) {
	uc.watchMu.Lock()
	defer uc.watchMu.Unlock()
	set, ok := uc.watchers[w.viewerID]
	if !ok {
		set = make(map[*BadgeWatcher]struct{})
		uc.watchers[w.viewerID] = set
	}
	set[w] = struct{}{}
}

func (uc *NotificationUseCase) untrack(w *BadgeWatcher) {
	uc.watchMu.Lock()
	defer uc.watchMu.Unlock()
	set := uc.watchers[w.viewerID]
	delete(set, w)
	if len(set) == 0 {
		delete(uc.watchers, w.viewerID)
	}
}

func (uc *NotificationUseCase) watchersOf(viewerID string) []*BadgeWatcher {
	uc.watchMu.Lock()
	defer uc.watchMu.Unlock()
	out := make([]*BadgeWatcher, 0, len(uc.watchers[viewerID]))
	for w := range uc.watchers[viewerID] {
		out = append(out, w)
	}
	return out
}
