package usecase

import (
	"context"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/internal/infrastructure/ratelimit"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
)

// PairReconciler re-derives request flags of an existing conversation.
type PairReconciler interface {
	ReconcilePair(ctx context.Context, a, b string) error
}

type RelationshipUseCase struct {
	relationshipRepo repository.RelationshipRepository
	notifier         Notifier
	conversations    PairReconciler
	rateLimiter      *ratelimit.RateLimiter
	now              Clock
}

func NewRelationshipUseCase(
	relationshipRepo repository.RelationshipRepository,
	notifier Notifier,
	conversations PairReconciler,
	rateLimiter *ratelimit.RateLimiter,
) *RelationshipUseCase {
	return &RelationshipUseCase{
		relationshipRepo: relationshipRepo,
		notifier:         notifier,
		conversations:    conversations,
		rateLimiter:      rateLimiter,
		now:              systemClock,
	}
}

// SetClock replaces the time source.
func (uc *RelationshipUseCase) SetClock(clock Clock) {
	uc.now = clock
}

func validateFollow(followerID, followingID string) error {
	if followerID == "" || followingID == "" {
		return errors.BadRequest("Follower and following are required", nil)
	}
	if followerID == followingID {
		return errors.BadRequest("You cannot follow yourself", nil)
	}
	return nil
}

// FollowUser creates the edge once. Repeating a follow is a no-op. The follow
// notification and conversation reconciliation never fail the follow.
func (uc *RelationshipUseCase) FollowUser(ctx context.Context, followerID, followingID string) error {
	if err := validateFollow(followerID, followingID); err != nil {
		return err
	}

	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(followerID, ratelimit.ActionFollow); !allowed {
			logger.Warn("FollowUser Rate Limited: User %s must wait %v", followerID, wait)
			return errors.TooManyRequests("Rate limit exceeded. Please wait before following more users")
		}
	}

	edge := &entity.FollowEdge{
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   uc.now(),
	}
	if err := uc.relationshipRepo.Create(ctx, edge); err != nil {
		if errors.Is(err, errors.CodeConflict) {
			logger.Debug("FollowUser: %s already follows %s", followerID, followingID)
			return nil
		}
		logger.Error("FollowUser Error: %s -> %s: %v", followerID, followingID, err)
		return err
	}

	if uc.notifier != nil {
		if _, err := uc.notifier.CreateNotification(ctx, followingID, followerID, entity.NotificationFollow, entity.NotificationOptions{}); err != nil {
			sideEffectFailed("FollowUser", "follow_notification", followingID, err)
		}
	}
	uc.reconcile(ctx, "FollowUser", followerID, followingID)
	return nil
}

// UnfollowUser deletes the edge. Participants who already engaged in a
// conversation with the other side stay out of its request folder.
func (uc *RelationshipUseCase) UnfollowUser(ctx context.Context, followerID, followingID string) error {
	if err := validateFollow(followerID, followingID); err != nil {
		return err
	}

	if err := uc.relationshipRepo.Delete(ctx, followerID, followingID); err != nil {
		logger.Error("UnfollowUser Error: %s -> %s: %v", followerID, followingID, err)
		return err
	}

	uc.reconcile(ctx, "UnfollowUser", followerID, followingID)
	return nil
}

func (uc *RelationshipUseCase) reconcile(ctx context.Context, operation, a, b string) {
	if uc.conversations == nil {
		return
	}
	if err := uc.conversations.ReconcilePair(ctx, a, b); err != nil {
		sideEffectFailed(operation, "conversation_reconcile", a+"/"+b, err)
	}
}

func (uc *RelationshipUseCase) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == "" || followingID == "" {
		return false, errors.BadRequest("Follower and following are required", nil)
	}
	if followerID == followingID {
		return false, nil
	}
	return uc.relationshipRepo.IsFollowing(ctx, followerID, followingID)
}

// OnFollowChange reports the current state of followerID -> followingID and every flip.
func (uc *RelationshipUseCase) OnFollowChange(ctx context.Context, followerID, followingID string, fn func(following bool)) (repository.Subscription, error) {
	if err := validateFollow(followerID, followingID); err != nil {
		return nil, err
	}
	return uc.relationshipRepo.Watch(ctx, followerID, followingID, fn)
}
