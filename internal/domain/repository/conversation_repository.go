package repository

import (
	"context"

	"recipehub/internal/domain/entity"
)

// TransformFunc computes a patch from the current stored conversation.
// Returning a nil patch aborts the write.
type TransformFunc func(current *entity.Conversation) (*entity.ConversationPatch, error)

type ConversationRepository interface {
	// Create fails with a CONFLICT AppError if the id already exists.
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	// FindByParticipants returns the conversation whose participant set is exactly {a, b}.
	FindByParticipants(ctx context.Context, a, b string) (*entity.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error)
	// Update applies a patch without reading. Unread increments are atomic.
	Update(ctx context.Context, id string, patch *entity.ConversationPatch) error
	// Transform reads the latest state and applies fn's patch in one transaction.
	Transform(ctx context.Context, id string, fn TransformFunc) (*entity.Conversation, error)
	Delete(ctx context.Context, id string) error
	// WatchByParticipant pushes the participant's full conversation list on every change.
	WatchByParticipant(ctx context.Context, userID string, fn func([]*entity.Conversation)) (Subscription, error)
}
