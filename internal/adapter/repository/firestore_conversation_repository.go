package repository

import (
	"context"
	"log"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(conversationsCollection).Doc(id)
}

func (r *firestoreConversationRepository) byParticipant(userID string) firestore.Query {
	return r.client.Collection(conversationsCollection).Where("participants", "array-contains", userID)
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	_, err := r.doc(conversation.ID).Create(ctx, conversation)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Conversation already exists", err)
		}
		return errors.Internal("Failed to create conversation", err)
	}
	return nil
}

func decodeConversation(doc *firestore.DocumentSnapshot) (*entity.Conversation, error) {
	var c entity.Conversation
	if err := doc.DataTo(&c); err != nil {
		return nil, err
	}
	c.ID = doc.Ref.ID
	return &c, nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	c, err := decodeConversation(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return c, nil
}

// FindByParticipants narrows the array-contains query, which also matches any
// other conversation touching a, down to an exact two-element match.
func (r *firestoreConversationRepository) FindByParticipants(ctx context.Context, a, b string) (*entity.Conversation, error) {
	docs, err := r.byParticipant(a).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query conversations", err)
	}

	for _, doc := range docs {
		c, err := decodeConversation(doc)
		if err != nil {
			log.Printf("FindByParticipants: skipping malformed conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		if c.MatchesPair(a, b) {
			return c, nil
		}
	}
	return nil, errors.NotFound("Conversation", nil)
}

func decodeConversations(docs []*firestore.DocumentSnapshot) []*entity.Conversation {
	out := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeConversation(doc)
		if err != nil {
			log.Printf("Error parsing conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		out = append(out, c)
	}
	// Sorted in memory so the query needs no composite index.
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	docs, err := r.byParticipant(userID).Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch conversations", err)
	}
	return decodeConversations(docs), nil
}

// conversationUpdates translates a patch into field-path updates. Participant
// ids are used as map keys, so FieldPath is used instead of dotted strings.
func conversationUpdates(p *entity.ConversationPatch, now time.Time) []firestore.Update {
	var updates []firestore.Update
	for id, v := range p.IsRequest {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"isRequest", id}, Value: v})
	}
	for id, v := range p.HasEngaged {
		if v {
			updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"hasEngaged", id}, Value: true})
		}
	}
	if p.RequestStatus != nil {
		updates = append(updates, firestore.Update{Path: "requestStatus", Value: *p.RequestStatus})
	}
	if p.ClearRequestTo {
		updates = append(updates, firestore.Update{Path: "requestTo", Value: nil})
	} else if p.RequestTo != nil {
		updates = append(updates, firestore.Update{Path: "requestTo", Value: *p.RequestTo})
	}
	for id, n := range p.UnreadIncrement {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"unreadCount", id}, Value: firestore.Increment(n)})
	}
	for _, id := range p.UnreadReset {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"unreadCount", id}, Value: 0})
	}
	for id, t := range p.LastSeen {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"lastSeenTimestamp", id}, Value: t})
	}
	if p.LastMessage != nil {
		var t interface{}
		if p.LastMessage.Time != nil {
			t = *p.LastMessage.Time
		}
		updates = append(updates,
			firestore.Update{Path: "lastMessage", Value: p.LastMessage.Text},
			firestore.Update{Path: "lastMessageTime", Value: t},
			firestore.Update{Path: "lastMessageId", Value: p.LastMessage.MessageID},
		)
	}
	return append(updates, firestore.Update{Path: "updatedAt", Value: now})
}

func (r *firestoreConversationRepository) Update(ctx context.Context, id string, patch *entity.ConversationPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	_, err := r.doc(id).Update(ctx, conversationUpdates(patch, time.Now()))
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) Transform(ctx context.Context, id string, fn repository.TransformFunc) (*entity.Conversation, error) {
	ref := r.doc(id)
	var result *entity.Conversation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeConversation(snap)
		if err != nil {
			return err
		}

		patch, err := fn(current)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			result = current
			return nil
		}

		now := time.Now()
		if err := tx.Update(ref, conversationUpdates(patch, now)); err != nil {
			return err
		}
		current.Apply(patch, now)
		result = current
		return nil
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		if isNotFound(err) {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to update conversation", err)
	}
	return result, nil
}

func (r *firestoreConversationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.doc(id).Delete(ctx); err != nil {
		return errors.Internal("Failed to delete conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) WatchByParticipant(ctx context.Context, userID string, fn func([]*entity.Conversation)) (repository.Subscription, error) {
	query := r.byParticipant(userID)
	return repository.StartWatch(ctx, func(ctx context.Context) {
		it := query.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !isCanceled(ctx, err) {
					log.Printf("WatchByParticipant: listener for %s stopped: %v", userID, err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("WatchByParticipant: failed to read snapshot for %s: %v", userID, err)
				continue
			}
			fn(decodeConversations(docs))
		}
	}), nil
}
