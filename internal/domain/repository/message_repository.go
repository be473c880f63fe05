package repository

import (
	"context"

	"recipehub/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	// List returns messages in ascending creation order.
	List(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	// Latest returns the newest message, or a NOT_FOUND AppError when the log is empty.
	Latest(ctx context.Context, conversationID string) (*entity.Message, error)
	UpdateText(ctx context.Context, conversationID, messageID, text string) (*entity.Message, error)
	// SetReaction records reactor's kind; an empty kind removes the reactor's entry.
	SetReaction(ctx context.Context, conversationID, messageID, reactor, kind string) (*entity.Message, error)
	// AddSeenBy adds viewer to seenBy of every listed message in one batch.
	AddSeenBy(ctx context.Context, conversationID string, messageIDs []string, viewer string) error
	HideFor(ctx context.Context, conversationID, messageID, viewer string) error
	Delete(ctx context.Context, conversationID, messageID string) error
	// ListIDs returns up to limit message ids, used to chunk bulk deletes.
	ListIDs(ctx context.Context, conversationID string, limit int) ([]string, error)
	DeleteBatch(ctx context.Context, conversationID string, messageIDs []string) error
}
