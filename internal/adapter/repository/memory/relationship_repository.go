package memory

import (
	"context"
	"sync"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/pkg/errors"
)

type relationshipRepository struct {
	store *Store
}

func (r *relationshipRepository) Create(ctx context.Context, edge *entity.FollowEdge) error {
	if err := r.store.fault("follows.create"); err != nil {
		return errors.Internal("Failed to follow user", err)
	}

	id := entity.FollowEdgeID(edge.FollowerID, edge.FollowingID)
	r.store.mu.Lock()
	if _, exists := r.store.follows[id]; exists {
		r.store.mu.Unlock()
		return errors.Conflict("Already following", nil)
	}
	e := *edge
	e.ID = id
	r.store.follows[id] = &e
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *relationshipRepository) Delete(ctx context.Context, followerID, followingID string) error {
	r.store.mu.Lock()
	delete(r.store.follows, entity.FollowEdgeID(followerID, followingID))
	r.store.mu.Unlock()

	r.store.changed()
	return nil
}

func (r *relationshipRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := r.store.fault("follows.get"); err != nil {
		return false, errors.Internal("Failed to read follow state", err)
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.follows[entity.FollowEdgeID(followerID, followingID)]
	return ok, nil
}

// Watch only delivers when the edge state actually flips.
func (r *relationshipRepository) Watch(ctx context.Context, followerID, followingID string, fn func(following bool)) (repository.Subscription, error) {
	id := entity.FollowEdgeID(followerID, followingID)
	var (
		mu   sync.Mutex
		last *bool
	)
	return r.store.watch(func() {
		r.store.mu.RLock()
		_, following := r.store.follows[id]
		r.store.mu.RUnlock()
		mu.Lock()
		defer mu.Unlock()
		if last != nil && *last == following {
			return
		}
		last = &following
		fn(following)
	}), nil
}
