// Package ratelimit is a fixed-window counter kept in Redis, shared by every
// API replica.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Limiter allows at most limit hits per subject per window. A nil Limiter,
// or one without a client, allows everything.
type Limiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func New(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "ledger:rate_limit"
	}
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, scope, subject string) (Decision, error) {
	if l == nil || l.client == nil || l.limit <= 0 || l.window <= 0 {
		return Decision{Allowed: true}, nil
	}

	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)
	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("Allow: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{Allowed: true}, fmt.Errorf("Allow: unexpected response shape %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{Allowed: true}, fmt.Errorf("Allow: unexpected count type %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retrySeconds := math.Ceil(float64(ttlMs) / 1000.0)
	if retrySeconds < 1 {
		retrySeconds = 1
	}

	return Decision{
		Allowed:    int(count) <= l.limit,
		Count:      int(count),
		RetryAfter: time.Duration(retrySeconds) * time.Second,
	}, nil
}
