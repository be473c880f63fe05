package memory

import (
	"context"
	"sort"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type conversationRepository struct {
	store *Store
}

func (r *conversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if err := r.store.fault("conversations.create"); err != nil {
		return errors.Internal("Failed to create conversation", err)
	}

	r.store.mu.Lock()
	if _, exists := r.store.conversations[conversation.ID]; exists {
		r.store.mu.Unlock()
		return errors.Conflict("Conversation already exists", nil)
	}
	r.store.conversations[conversation.ID] = cloneConversation(conversation)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	if err := r.store.fault("conversations.get"); err != nil {
		return nil, errors.Internal("Failed to get conversation", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return cloneConversation(c), nil
}

func (r *conversationRepository) FindByParticipants(ctx context.Context, a, b string) (*entity.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, c := range r.store.conversations {
		if c.MatchesPair(a, b) {
			return cloneConversation(c), nil
		}
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *conversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.listLocked(userID), nil
}

func (r *conversationRepository) listLocked(userID string) []*entity.Conversation {
	var out []*entity.Conversation
	for _, c := range r.store.conversations {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (r *conversationRepository) Update(ctx context.Context, id string, patch *entity.ConversationPatch) error {
	if err := r.store.fault("conversations.update"); err != nil {
		return errors.Internal("Failed to update conversation", err)
	}

	r.store.mu.Lock()
	c, ok := r.store.conversations[id]
	if !ok {
		r.store.mu.Unlock()
		return errors.NotFound("Conversation", nil)
	}
	c.Apply(patch, r.store.Now())
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *conversationRepository) Transform(ctx context.Context, id string, fn repository.TransformFunc) (*entity.Conversation, error) {
	if err := r.store.fault("conversations.update"); err != nil {
		return nil, errors.Internal("Failed to update conversation", err)
	}

	r.store.mu.Lock()
	c, ok := r.store.conversations[id]
	if !ok {
		r.store.mu.Unlock()
		return nil, errors.NotFound("Conversation", nil)
	}
	patch, err := fn(cloneConversation(c))
	if err != nil {
		r.store.mu.Unlock()
		return nil, err
	}
	if patch.IsEmpty() {
		out := cloneConversation(c)
		r.store.mu.Unlock()
		return out, nil
	}
	c.Apply(patch, r.store.Now())
	out := cloneConversation(c)
	r.store.mu.Unlock()

	r.store.changed()
	return out, nil
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	delete(r.store.conversations, id)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *conversationRepository) WatchByParticipant(ctx context.Context, userID string, fn func([]*entity.Conversation)) (repository.Subscription, error) {
	return r.store.watch(func() {
		r.store.mu.RLock()
		list := r.listLocked(userID)
		r.store.mu.RUnlock()
		fn(list)
	}), nil
}
