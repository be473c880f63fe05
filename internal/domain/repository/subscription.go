package repository

import (
	"context"
	"sync"
)

// Subscription is a live listener. Unsubscribe stops callback delivery and
// releases the underlying watch. It is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// WatchSubscription runs a watch loop in its own goroutine and tears it down
// on Unsubscribe, waiting for the loop to return before releasing.
type WatchSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartWatch launches loop with a cancellable child of ctx.
func StartWatch(ctx context.Context, loop func(ctx context.Context)) *WatchSubscription {
	watchCtx, cancel := context.WithCancel(ctx)
	s := &WatchSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		loop(watchCtx)
	}()
	return s
}

func (s *WatchSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Done is closed once the watch loop has exited.
func (s *WatchSubscription) Done() <-chan struct{} {
	return s.done
}
