package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScopeExtraction throttles the AI extraction endpoints. Each call hits a
// paid model.
const ScopeExtraction = "fdr_extraction"

// Quota is how many requests a caller may make per window in one scope.
type Quota struct {
	Limit  int
	Window time.Duration
}

// RateDecision is the outcome of counting one request against a quota.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// The window index is part of the key, so the expiry only reclaims memory and
// a lost PEXPIRE can never pin a caller at the limit.
var windowCounterScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter counts requests per scope and caller in fixed windows
// aligned to the epoch, shared by every API replica through Redis.
type RedisRateLimiter struct {
	client redis.Scripter
	prefix string
	quotas map[string]Quota
	now    func() time.Time
}

// NewRedisRateLimiter builds a limiter enforcing quotas by scope. Scopes with
// no quota, or a non-positive limit, are not limited.
func NewRedisRateLimiter(client redis.Scripter, prefix string, quotas map[string]Quota) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "fdr:rate_limit"
	}

	normalized := make(map[string]Quota, len(quotas))
	for scope, q := range quotas {
		if q.Limit <= 0 {
			continue
		}
		if q.Window < time.Second {
			q.Window = time.Second
		}
		normalized[strings.TrimSpace(scope)] = q
	}

	return &RedisRateLimiter{client: client, prefix: prefix, quotas: normalized, now: time.Now}
}

// Allow counts one request by subject in scope.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope, subject string) (RateDecision, error) {
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	quota, limited := r.quotas[scope]
	if r.client == nil || !limited || subject == "" {
		return RateDecision{Allowed: true}, nil
	}

	now := r.now()
	windowMs := quota.Window.Milliseconds()
	index := now.UnixMilli() / windowMs
	resetAt := time.UnixMilli((index + 1) * windowMs)

	key := fmt.Sprintf("%s:%s:%s:%d", r.prefix, scope, subject, index)
	raw, err := windowCounterScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	count, ok := raw.(int64)
	if !ok {
		return RateDecision{}, fmt.Errorf("rate limit %s: unexpected counter type %T", scope, raw)
	}

	decision := RateDecision{
		Allowed:   count <= int64(quota.Limit),
		Limit:     quota.Limit,
		Remaining: quota.Limit - int(count),
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !decision.Allowed {
		decision.RetryAfter = resetAt.Sub(now)
	}
	return decision, nil
}
