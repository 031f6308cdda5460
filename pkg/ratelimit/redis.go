package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "cachegate:rl:"

	redisTimeout  = 5 * time.Second
	redisPoolSize = 10
)

// Counter and expiry are set in one round trip so concurrent gateways
// never see a key without its window TTL.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local current = redis.call('GET', key)
if current == false then
	redis.call('SET', key, 1, 'PX', window)
	return {1, limit - 1}
end

if tonumber(current) < limit then
	local n = redis.call('INCR', key)
	if redis.call('PTTL', key) == -1 then
		redis.call('PEXPIRE', key, window)
	end
	return {1, limit - n}
end

return {0, redis.call('PTTL', key)}
`)

// RedisWindow is a fixed window kept in Redis, shared by every gateway
// pointing at the same server.
type RedisWindow struct {
	client *redis.Client
	prefix string
	owned  bool

	mu    sync.RWMutex
	rules map[string]Rule
}

func NewRedisWindow(client *redis.Client, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisWindow{client: client, prefix: prefix, rules: make(map[string]Rule)}
}

func (r *RedisWindow) Register(routeID string, rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.rules[routeID] = rule
	r.mu.Unlock()
	return nil
}

func (r *RedisWindow) Allow(ctx context.Context, routeID string) (Decision, error) {
	r.mu.RLock()
	rule, ok := r.rules[routeID]
	r.mu.RUnlock()
	if !ok {
		return Decision{Allowed: true}, nil
	}

	res, err := windowScript.Run(ctx, r.client, []string{r.prefix + routeID},
		rule.Window.Milliseconds(), rule.Limit).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis window for %s: %w", routeID, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected redis reply %v", res)
	}

	if res[0] == 1 {
		return Decision{Allowed: true, Remaining: int(res[1])}, nil
	}
	retry := time.Duration(res[1]) * time.Millisecond
	if retry <= 0 {
		retry = rule.Window
	}
	return Decision{RetryAfter: retry}, nil
}

func (r *RedisWindow) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}
