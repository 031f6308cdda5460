package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// TokenBucket smooths a route to Limit requests per Window, allowing bursts of Limit.
type TokenBucket struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	limiters map[string]*rate.Limiter
}

func NewTokenBucket(clock clockwork.Clock) *TokenBucket {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenBucket{clock: clock, limiters: make(map[string]*rate.Limiter)}
}

func (t *TokenBucket) Register(routeID string, rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	lim := rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Limit)), rule.Limit)
	lim.SetLimitAt(t.clock.Now(), lim.Limit())

	t.mu.Lock()
	t.limiters[routeID] = lim
	t.mu.Unlock()
	return nil
}

func (t *TokenBucket) Allow(_ context.Context, routeID string) (Decision, error) {
	t.mu.Lock()
	lim, ok := t.limiters[routeID]
	t.mu.Unlock()
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := t.clock.Now()
	if lim.AllowN(now, 1) {
		return Decision{Allowed: true, Remaining: int(lim.TokensAt(now))}, nil
	}
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{RetryAfter: delay}, nil
}

func (t *TokenBucket) Close() error { return nil }
