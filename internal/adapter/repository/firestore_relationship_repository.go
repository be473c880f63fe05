package repository

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type firestoreRelationshipRepository struct {
	client *firestore.Client
}

func NewFirestoreRelationshipRepository(client *firestore.Client) repository.RelationshipRepository {
	return &firestoreRelationshipRepository{
		client: client,
	}
}

func (r *firestoreRelationshipRepository) doc(followerID, followingID string) *firestore.DocumentRef {
	return r.client.Collection(followsCollection).Doc(entity.FollowEdgeID(followerID, followingID))
}

func (r *firestoreRelationshipRepository) Create(ctx context.Context, edge *entity.FollowEdge) error {
	edge.ID = entity.FollowEdgeID(edge.FollowerID, edge.FollowingID)
	if _, err := r.doc(edge.FollowerID, edge.FollowingID).Create(ctx, edge); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Already following this user", err)
		}
		return errors.Internal("Failed to create follow", err)
	}
	return nil
}

func (r *firestoreRelationshipRepository) Delete(ctx context.Context, followerID, followingID string) error {
	if _, err := r.doc(followerID, followingID).Delete(ctx); err != nil {
		return errors.Internal("Failed to delete follow", err)
	}
	return nil
}

func (r *firestoreRelationshipRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	_, err := r.doc(followerID, followingID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Internal("Failed to check follow", err)
	}
	return true, nil
}

func (r *firestoreRelationshipRepository) Watch(ctx context.Context, followerID, followingID string, fn func(following bool)) (repository.Subscription, error) {
	ref := r.doc(followerID, followingID)
	return repository.StartWatch(ctx, func(ctx context.Context) {
		it := ref.Snapshots(ctx)
		defer it.Stop()
		var last *bool
		for {
			snap, err := it.Next()
			if err != nil && !isNotFound(err) {
				if !isCanceled(ctx, err) {
					log.Printf("Watch follow %s: listener stopped: %v", ref.ID, err)
				}
				return
			}
			following := err == nil && snap != nil && snap.Exists()
			if last != nil && *last == following {
				continue
			}
			last = &following
			fn(following)
		}
	}), nil
}
