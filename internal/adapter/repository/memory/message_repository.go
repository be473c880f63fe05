package memory

import (
	"context"
	"sort"

	"recipehub/internal/domain/entity"
	"recipehub/pkg/errors"
)

type messageRepository struct {
	store *Store
}

func (r *messageRepository) Create(ctx context.Context, message *entity.Message) error {
	if err := r.store.fault("messages.create"); err != nil {
		return errors.Internal("Failed to create message", err)
	}

	r.store.mu.Lock()
	log, ok := r.store.messages[message.ConversationID]
	if !ok {
		log = make(map[string]*entity.Message)
		r.store.messages[message.ConversationID] = log
	}
	log[message.ID] = cloneMessage(message)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.messages[conversationID][messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return cloneMessage(m), nil
}

func (r *messageRepository) sortedLocked(conversationID string) []*entity.Message {
	log := r.store.messages[conversationID]
	out := make([]*entity.Message, 0, len(log))
	for _, m := range log {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *messageRepository) List(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	if err := r.store.fault("messages.list"); err != nil {
		return nil, 0, errors.Internal("Failed to list messages", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	all := r.sortedLocked(conversationID)
	total := int64(len(all))

	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*entity.Message, 0, end-offset)
	for _, m := range all[offset:end] {
		out = append(out, cloneMessage(m))
	}
	return out, total, nil
}

func (r *messageRepository) Latest(ctx context.Context, conversationID string) (*entity.Message, error) {
	if err := r.store.fault("messages.latest"); err != nil {
		return nil, errors.Internal("Failed to read latest message", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	all := r.sortedLocked(conversationID)
	if len(all) == 0 {
		return nil, errors.NotFound("Message", nil)
	}
	return cloneMessage(all[len(all)-1]), nil
}

func (r *messageRepository) mutate(conversationID, messageID string, fn func(m *entity.Message)) (*entity.Message, error) {
	r.store.mu.Lock()
	m, ok := r.store.messages[conversationID][messageID]
	if !ok {
		r.store.mu.Unlock()
		return nil, errors.NotFound("Message", nil)
	}
	fn(m)
	out := cloneMessage(m)
	r.store.mu.Unlock()

	r.store.changed()
	return out, nil
}

func (r *messageRepository) UpdateText(ctx context.Context, conversationID, messageID, text string) (*entity.Message, error) {
	now := r.store.Now()
	return r.mutate(conversationID, messageID, func(m *entity.Message) {
		m.Text = text
		m.Edited = true
		m.EditedAt = &now
	})
}

func (r *messageRepository) SetReaction(ctx context.Context, conversationID, messageID, reactor, kind string) (*entity.Message, error) {
	return r.mutate(conversationID, messageID, func(m *entity.Message) {
		if m.Reactions == nil {
			m.Reactions = make(map[string]string)
		}
		if kind == "" {
			delete(m.Reactions, reactor)
			return
		}
		m.Reactions[reactor] = kind
	})
}

func (r *messageRepository) AddSeenBy(ctx context.Context, conversationID string, messageIDs []string, viewer string) error {
	if err := r.store.fault("messages.seen"); err != nil {
		return errors.Internal("Failed to mark messages as seen", err)
	}

	r.store.mu.Lock()
	for _, id := range messageIDs {
		m, ok := r.store.messages[conversationID][id]
		if !ok || m.IsSeenBy(viewer) {
			continue
		}
		m.SeenBy = append(m.SeenBy, viewer)
	}
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *messageRepository) HideFor(ctx context.Context, conversationID, messageID, viewer string) error {
	_, err := r.mutate(conversationID, messageID, func(m *entity.Message) {
		if !m.IsHiddenFor(viewer) {
			m.DeletedBy = append(m.DeletedBy, viewer)
		}
	})
	return err
}

func (r *messageRepository) Delete(ctx context.Context, conversationID, messageID string) error {
	r.store.mu.Lock()
	delete(r.store.messages[conversationID], messageID)
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *messageRepository) ListIDs(ctx context.Context, conversationID string, limit int) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var ids []string
	for _, m := range r.sortedLocked(conversationID) {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// DeleteBatches counts DeleteBatch calls, letting tests check chunking.
func (s *Store) DeleteBatches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleteBatches
}

func (r *messageRepository) DeleteBatch(ctx context.Context, conversationID string, messageIDs []string) error {
	if err := r.store.fault("messages.delete_batch"); err != nil {
		return errors.Internal("Failed to delete messages", err)
	}

	r.store.mu.Lock()
	r.store.deleteBatches++
	for _, id := range messageIDs {
		delete(r.store.messages[conversationID], id)
	}
	if len(r.store.messages[conversationID]) == 0 {
		delete(r.store.messages, conversationID)
	}
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}
