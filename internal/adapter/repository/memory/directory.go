package memory

import (
	"context"
	"sync"

	"recipehub/internal/domain/entity"
	"recipehub/pkg/errors"
)

// Directory is an in-memory profile and recipe-title lookup.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]*entity.Profile
	titles   map[string]string
	err      error
}

func NewDirectory() *Directory {
	return &Directory{
		profiles: make(map[string]*entity.Profile),
		titles:   make(map[string]string),
	}
}

func (d *Directory) SetProfile(userID, displayName, avatarURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[userID] = &entity.Profile{UserID: userID, DisplayName: displayName, AvatarURL: avatarURL}
}

func (d *Directory) SetPostTitle(postID, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles[postID] = title
}

// Fail makes every lookup return err until called with nil.
func (d *Directory) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *Directory) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	p, ok := d.profiles[userID]
	if !ok {
		return nil, errors.NotFound("Profile", nil)
	}
	out := *p
	return &out, nil
}

func (d *Directory) GetPostTitle(ctx context.Context, postID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return "", d.err
	}
	title, ok := d.titles[postID]
	if !ok {
		return "", errors.NotFound("Recipe", nil)
	}
	return title, nil
}
