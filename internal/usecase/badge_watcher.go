package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"recipehub/internal/domain/repository"
	"recipehub/internal/infrastructure/metrics"
)

// BadgeWatcher keeps a live badge count for one viewer. Whenever its query
// changes (watermark moved, follow state changed) the previous listener is
// fully torn down before the next one starts, and callbacks from a retired
// listener are discarded.
type BadgeWatcher struct {
	uc       *NotificationUseCase
	viewerID string
	fn       func(count int)

	mu         sync.Mutex
	sub        repository.Subscription
	generation atomic.Int64
	closed     bool
}

// WatchBadge starts a watcher from the viewer's stored watermark.
func (uc *NotificationUseCase) WatchBadge(ctx context.Context, viewerID string, fn func(count int)) (*BadgeWatcher, error) {
	w := &BadgeWatcher{uc: uc, viewerID: viewerID, fn: fn}
	if err := w.Refresh(ctx); err != nil {
		return nil, err
	}
	uc.track(w)
	metrics.ActiveSubscriptions.WithLabelValues("badge").Inc()
	return w, nil
}

// Refresh re-reads the watermark and re-subscribes.
func (w *BadgeWatcher) Refresh(ctx context.Context) error {
	prefs, err := w.uc.preferenceRepo.Get(ctx, w.viewerID)
	if err != nil {
		return err
	}
	return w.resubscribe(ctx, prefs.LastOpenedNotificationAt)
}

// WatermarkMoved re-subscribes with a known new watermark.
func (w *BadgeWatcher) WatermarkMoved(ctx context.Context, at time.Time) error {
	return w.resubscribe(ctx, &at)
}

// FollowChanged is wired to a relationship listener. Follow events create
// feed items, so the count is re-derived from scratch.
func (w *BadgeWatcher) FollowChanged(ctx context.Context) error {
	return w.Refresh(ctx)
}

func (w *BadgeWatcher) resubscribe(ctx context.Context, since *time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}

	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}

	gen := w.generation.Add(1)
	sub, err := w.uc.notificationRepo.WatchCreatedAfter(ctx, w.viewerID, since, func(count int) {
		if w.generation.Load() != gen {
			return
		}
		w.fn(count)
	})
	if err != nil {
		return err
	}
	w.sub = sub
	return nil
}

func (w *BadgeWatcher) Unsubscribe() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.generation.Add(1)
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	w.mu.Unlock()

	w.uc.untrack(w)
	metrics.ActiveSubscriptions.WithLabelValues("badge").Dec()
}
