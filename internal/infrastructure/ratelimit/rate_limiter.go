package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Actions with their own budgets.
const (
	ActionSendMessage        = "send_message"
	ActionCreateConversation = "create_conversation"
	ActionFollow             = "follow"
	ActionNotify             = "notify"
)

// Policy is a per-minute budget with a burst allowance.
type Policy struct {
	PerMinute int
	Burst     int
}

func (p Policy) limiter() *rate.Limiter {
	perMinute := p.PerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	burst := p.Burst
	if burst <= 0 {
		burst = perMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user:action key.
type RateLimiter struct {
	mutex    sync.Mutex
	buckets  map[string]*bucket
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
}

// NewRateLimiter builds a limiter with the given per-action policies.
// Actions without a policy get 20 per minute.
func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	if policies == nil {
		policies = make(map[string]Policy)
	}
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		policies: policies,
		fallback: Policy{PerMinute: 20},
		now:      time.Now,
	}
}

func (rl *RateLimiter) get(key, action string) *bucket {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		policy, found := rl.policies[action]
		if !found {
			policy = rl.fallback
		}
		b = &bucket{limiter: policy.limiter()}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.now()
	return b
}

// Allow consumes a token for userID's action. When refused it also returns
// how long until the next token is available.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	b := rl.get(userID+":"+action, action)

	now := rl.now()
	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// Cleanup removes buckets idle for longer than ttl.
func (rl *RateLimiter) Cleanup(ttl time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > ttl {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine evicts idle buckets every 30 minutes until stop is closed.
func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}

// Size reports the number of live buckets.
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}
