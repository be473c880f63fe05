package repository

import (
	"context"

	"recipehub/internal/domain/entity"
)

type RelationshipRepository interface {
	// Create fails with a CONFLICT AppError when the edge already exists.
	Create(ctx context.Context, edge *entity.FollowEdge) error
	Delete(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	// Watch reports the current state of the edge and every later change.
	Watch(ctx context.Context, followerID, followingID string, fn func(following bool)) (Subscription, error)
}
