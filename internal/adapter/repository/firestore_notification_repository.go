package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(notificationsCollection)
}

// live is the base query for every read: the recipient's non-deleted notifications.
func (r *firestoreNotificationRepository) live(recipientID string) firestore.Query {
	return r.collection().
		Where("recipientUserId", "==", recipientID).
		Where("deleted", "==", false)
}

func decodeNotification(doc *firestore.DocumentSnapshot) (*entity.Notification, error) {
	var n entity.Notification
	if err := doc.DataTo(&n); err != nil {
		return nil, err
	}
	n.ID = doc.Ref.ID
	return &n, nil
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if _, err := r.collection().Doc(notification.ID).Set(ctx, notification); err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	doc, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Notification", err)
		}
		return nil, errors.Internal("Failed to get notification", err)
	}

	n, err := decodeNotification(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse notification data", err)
	}
	if !n.IsLive() {
		return nil, errors.NotFound("Notification", nil)
	}
	return n, nil
}

func (r *firestoreNotificationRepository) FindLatestLive(ctx context.Context, recipientID, notificationType, postID string) (*entity.Notification, error) {
	query := r.live(recipientID).Where("type", "==", notificationType)
	// relatedPostId is omitted when empty, so an equality filter on "" would match nothing.
	if postID != "" {
		query = query.Where("relatedPostId", "==", postID)
	}

	iter := query.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to query notifications", err)
		}
		n, err := decodeNotification(doc)
		if err != nil {
			log.Printf("Error parsing notification %s: %v", doc.Ref.ID, err)
			continue
		}
		if n.RelatedPostID == postID {
			return n, nil
		}
	}
	return nil, errors.NotFound("Notification", nil)
}

func (r *firestoreNotificationRepository) update(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := r.collection().Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return errors.NotFound("Notification", err)
		}
		return errors.Internal("Failed to update notification", err)
	}
	return nil
}

// CollapseOrCreate runs the lookup and the write in one transaction.
func (r *firestoreNotificationRepository) CollapseOrCreate(ctx context.Context, notification *entity.Notification) (string, bool, error) {
	query := r.live(notification.RecipientUserID).
		Where("type", "==", notification.Type).
		Where("relatedPostId", "==", notification.RelatedPostID).
		OrderBy("createdAt", firestore.Desc).
		Limit(1)

	var (
		id        string
		collapsed bool
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		id, collapsed = notification.ID, false

		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			id, collapsed = docs[0].Ref.ID, true
			return tx.Update(docs[0].Ref, []firestore.Update{
				{Path: "actorUserId", Value: notification.ActorUserID},
				{Path: "createdAt", Value: notification.CreatedAt},
				{Path: "read", Value: false},
			})
		}
		return tx.Create(r.collection().Doc(notification.ID), notification)
	})
	if err != nil {
		return "", false, errors.Internal("Failed to record notification", err)
	}
	return id, collapsed, nil
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.update(ctx, id, []firestore.Update{{Path: "read", Value: true}})
}

func (r *firestoreNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	docs, err := r.live(recipientID).Where("read", "==", false).Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query unread notifications", err)
	}

	refs := make([]*firestore.DocumentRef, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, doc.Ref)
	}
	err = commitInChunks(ctx, r.client, refs, func(b *firestore.WriteBatch, ref *firestore.DocumentRef) {
		b.Update(ref, []firestore.Update{{Path: "read", Value: true}})
	})
	if err != nil {
		return 0, errors.Internal("Failed to mark notifications as read", err)
	}
	return len(refs), nil
}

func (r *firestoreNotificationRepository) SoftDelete(ctx context.Context, id string) error {
	return r.update(ctx, id, []firestore.Update{{Path: "deleted", Value: true}})
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entity.Notification, error) {
	query := r.live(recipientID).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list notifications", err)
	}

	out := make([]*entity.Notification, 0, len(docs))
	for _, doc := range docs {
		n, err := decodeNotification(doc)
		if err != nil {
			log.Printf("Error parsing notification %s: %v", doc.Ref.ID, err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := countQuery(ctx, r.live(recipientID).Where("read", "==", false))
	if err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}
	return n, nil
}

func (r *firestoreNotificationRepository) createdAfter(recipientID string, since *time.Time) firestore.Query {
	query := r.live(recipientID)
	if since != nil {
		query = query.Where("createdAt", ">", *since)
	}
	return query
}

func (r *firestoreNotificationRepository) CountCreatedAfter(ctx context.Context, recipientID string, since *time.Time) (int, error) {
	n, err := countQuery(ctx, r.createdAfter(recipientID, since))
	if err != nil {
		return 0, errors.Internal("Failed to count notifications", err)
	}
	return n, nil
}

func (r *firestoreNotificationRepository) WatchCreatedAfter(ctx context.Context, recipientID string, since *time.Time, fn func(count int)) (repository.Subscription, error) {
	query := r.createdAfter(recipientID, since)
	return repository.StartWatch(ctx, func(ctx context.Context) {
		it := query.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !isCanceled(ctx, err) {
					log.Printf("WatchCreatedAfter: listener for %s stopped: %v", recipientID, err)
				}
				return
			}
			fn(snap.Size)
		}
	}), nil
}

type firestorePreferenceRepository struct {
	client *firestore.Client
}

func NewFirestorePreferenceRepository(client *firestore.Client) repository.PreferenceRepository {
	return &firestorePreferenceRepository{
		client: client,
	}
}

func (r *firestorePreferenceRepository) Get(ctx context.Context, userID string) (*entity.UserPreferences, error) {
	doc, err := r.client.Collection(preferencesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return &entity.UserPreferences{UserID: userID}, nil
		}
		return nil, errors.Internal("Failed to get user preferences", err)
	}

	var prefs entity.UserPreferences
	if err := doc.DataTo(&prefs); err != nil {
		return nil, errors.Internal("Failed to parse user preferences", err)
	}
	prefs.UserID = userID
	return &prefs, nil
}

func (r *firestorePreferenceRepository) SetLastOpenedNotificationAt(ctx context.Context, userID string, at time.Time) error {
	_, err := r.client.Collection(preferencesCollection).Doc(userID).Set(ctx, map[string]interface{}{
		"userId":                   userID,
		"lastOpenedNotificationAt": at,
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update user preferences", err)
	}
	return nil
}
