// Package ratelimit admits or rejects requests per route over a time window.
//
// Limits are global to a route: every client shares the same counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendToken  = "token"
)

var ErrInvalidRule = errors.New("ratelimit: limit and window must be positive")

// Rule caps a route at Limit admitted requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return fmt.Errorf("%w (limit=%d window=%s)", ErrInvalidRule, r.Limit, r.Window)
	}
	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the route admits again. Zero when allowed.
	RetryAfter time.Duration
	Remaining  int
}

// Limiter decides whether a request for a route may go upstream.
// Routes that were never registered are always allowed.
type Limiter interface {
	Register(routeID string, rule Rule) error
	Allow(ctx context.Context, routeID string) (Decision, error)
	Close() error
}

// Options configures the backend built by New.
type Options struct {
	Clock clockwork.Clock

	// Redis backend. Client wins over Addr when both are set.
	Client    *redis.Client
	RedisAddr string
	RedisDB   int
	Prefix    string
}

// New builds a limiter for backend.
func New(backend string, opts Options) (Limiter, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	switch backend {
	case "", BackendMemory:
		return NewFixedWindow(opts.Clock), nil
	case BackendToken:
		return NewTokenBucket(opts.Clock), nil
	case BackendRedis:
		client := opts.Client
		owned := false
		if client == nil {
			if opts.RedisAddr == "" {
				return nil, errors.New("ratelimit: redis backend needs an address")
			}
			client = redis.NewClient(&redis.Options{
				Addr:         opts.RedisAddr,
				DB:           opts.RedisDB,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  redisTimeout,
				WriteTimeout: redisTimeout,
				PoolSize:     redisPoolSize,
			})
			owned = true
		}
		rw := NewRedisWindow(client, opts.Prefix)
		rw.owned = owned
		return rw, nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown backend %q", backend)
	}
}
