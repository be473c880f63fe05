package usecase

import (
	"context"
	"time"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/metrics"
	"recipehub/pkg/logger"
)

// Clock is the time source shared by the usecases.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// profileOrPlaceholder never fails: lookup errors degrade to the generic profile.
func profileOrPlaceholder(ctx context.Context, profiles service.ProfileProvider, userID string) *entity.Profile {
	if profiles == nil || userID == "" {
		return entity.PlaceholderProfile(userID)
	}
	profile, err := profiles.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		if err != nil {
			logger.Debug("Profile lookup for %s degraded to placeholder: %v", userID, err)
		}
		return entity.PlaceholderProfile(userID)
	}
	if profile.DisplayName == "" {
		profile.DisplayName = entity.PlaceholderDisplayName
	}
	if profile.AvatarURL == "" {
		profile.AvatarURL = entity.DefaultAvatarURL
	}
	profile.UserID = userID
	return profile
}

// postTitleOrPlaceholder returns the placeholder with ok=false when the title is unavailable.
func postTitleOrPlaceholder(ctx context.Context, posts service.PostProvider, postID string) (string, bool) {
	if posts == nil || postID == "" {
		return entity.PlaceholderPostTitle, false
	}
	title, err := posts.GetPostTitle(ctx, postID)
	if err != nil || title == "" {
		if err != nil {
			logger.Debug("Post title lookup for %s degraded to placeholder: %v", postID, err)
		}
		return entity.PlaceholderPostTitle, false
	}
	return title, true
}

// sideEffectFailed records a downstream failure without failing the caller.
func sideEffectFailed(operation, kind, subject string, err error) {
	logger.SideEffectFailed(operation, subject, err)
	metrics.SideEffectFailures.WithLabelValues(kind).Inc()
}
