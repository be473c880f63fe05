package service

import (
	"context"

	"recipehub/internal/domain/entity"
)

// ProfileProvider supplies display data for a user. Callers must degrade to
// entity.PlaceholderProfile on error.
type ProfileProvider interface {
	GetProfile(ctx context.Context, userID string) (*entity.Profile, error)
}

// PostProvider supplies recipe titles for notification text.
type PostProvider interface {
	GetPostTitle(ctx context.Context, postID string) (string, error)
}

// AttachmentResolver turns a stored attachment reference into a URL a client can fetch.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}
