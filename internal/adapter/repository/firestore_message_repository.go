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

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

// Messages live in conversations/{id}/messages.
func (r *firestoreMessageRepository) collection(conversationID string) *firestore.CollectionRef {
	return r.client.Collection(conversationsCollection).Doc(conversationID).Collection(messagesCollection)
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var m entity.Message
	if err := doc.DataTo(&m); err != nil {
		return nil, err
	}
	m.ID = doc.Ref.ID
	return &m, nil
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	_, err := r.collection(message.ConversationID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.collection(conversationID).Doc(messageID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	m, err := decodeMessage(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return m, nil
}

func (r *firestoreMessageRepository) List(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	base := r.collection(conversationID).Query

	total, err := countQuery(ctx, base)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	query := base.OrderBy("createdAt", firestore.Asc).Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		m, err := decodeMessage(doc)
		if err != nil {
			log.Printf("Error parsing message %s: %v", doc.Ref.ID, err)
			continue
		}
		messages = append(messages, m)
	}

	return messages, int64(total), nil
}

func (r *firestoreMessageRepository) Latest(ctx context.Context, conversationID string) (*entity.Message, error) {
	iter := r.collection(conversationID).OrderBy("createdAt", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, errors.NotFound("Message", nil)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get latest message", err)
	}

	m, err := decodeMessage(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return m, nil
}

func (r *firestoreMessageRepository) update(ctx context.Context, conversationID, messageID string, updates []firestore.Update) error {
	_, err := r.collection(conversationID).Doc(messageID).Update(ctx, updates)
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) UpdateText(ctx context.Context, conversationID, messageID, text string) (*entity.Message, error) {
	err := r.update(ctx, conversationID, messageID, []firestore.Update{
		{Path: "text", Value: text},
		{Path: "edited", Value: true},
		{Path: "editedAt", Value: time.Now()},
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, conversationID, messageID)
}

func (r *firestoreMessageRepository) SetReaction(ctx context.Context, conversationID, messageID, reactor, kind string) (*entity.Message, error) {
	var value interface{} = kind
	if kind == "" {
		value = firestore.Delete
	}
	err := r.update(ctx, conversationID, messageID, []firestore.Update{
		{FieldPath: firestore.FieldPath{"reactions", reactor}, Value: value},
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, conversationID, messageID)
}

func (r *firestoreMessageRepository) refs(conversationID string, messageIDs []string) []*firestore.DocumentRef {
	col := r.collection(conversationID)
	refs := make([]*firestore.DocumentRef, 0, len(messageIDs))
	for _, id := range messageIDs {
		refs = append(refs, col.Doc(id))
	}
	return refs
}

func (r *firestoreMessageRepository) AddSeenBy(ctx context.Context, conversationID string, messageIDs []string, viewer string) error {
	err := commitInChunks(ctx, r.client, r.refs(conversationID, messageIDs), func(b *firestore.WriteBatch, ref *firestore.DocumentRef) {
		b.Update(ref, []firestore.Update{{Path: "seenBy", Value: firestore.ArrayUnion(viewer)}})
	})
	if err != nil {
		return errors.Internal("Failed to mark messages as seen", err)
	}
	return nil
}

func (r *firestoreMessageRepository) HideFor(ctx context.Context, conversationID, messageID, viewer string) error {
	return r.update(ctx, conversationID, messageID, []firestore.Update{
		{Path: "deletedBy", Value: firestore.ArrayUnion(viewer)},
	})
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, conversationID, messageID string) error {
	if _, err := r.collection(conversationID).Doc(messageID).Delete(ctx); err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) ListIDs(ctx context.Context, conversationID string, limit int) ([]string, error) {
	// Select with no fields fetches references only.
	docs, err := r.collection(conversationID).Select().Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func (r *firestoreMessageRepository) DeleteBatch(ctx context.Context, conversationID string, messageIDs []string) error {
	err := commitInChunks(ctx, r.client, r.refs(conversationID, messageIDs), func(b *firestore.WriteBatch, ref *firestore.DocumentRef) {
		b.Delete(ref)
	})
	if err != nil {
		return errors.Internal("Failed to delete messages", err)
	}
	return nil
}
