package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"
)

const keyPrefix = "ratelimit"

// Limiter implements fixed-window counting against a shared atomic
// counter store. Handlers run with no shared process memory, so every
// count goes through the store's per-key atomic increment; the limiter
// itself keeps no request state.
type Limiter struct {
	store  CounterStore
	blocks *BlockRegistry
	now    func() time.Time
}

func NewLimiter(store CounterStore, blocks *BlockRegistry) *Limiter {
	return &Limiter{
		store:  store,
		blocks: blocks,
		now:    time.Now,
	}
}

// CheckRateLimit counts this request against rule's current window and
// decides allow/deny. Store failures fail open: the request is allowed
// and reported as if it were the first consumed slot of the window.
// This method never returns an error; availability wins over strict
// enforcement.
func (l *Limiter) CheckRateLimit(ctx context.Context, identifier string, rule Rule) Result {
	nowMs := l.now().UnixMilli()
	windowMs := rule.Window.Milliseconds()
	windowStart := nowMs / windowMs * windowMs
	resetTime := time.UnixMilli(windowStart + windowMs)

	key := fmt.Sprintf("%s:%s:%s:%d", keyPrefix, rule.Name, identifier, windowStart)

	// TTL covers two window lengths so the store never evicts a counter
	// while it is still authoritative.
	expireAt := (windowStart + 2*windowMs) / 1000

	count, err := l.store.AtomicIncrement(ctx, key, 1, expireAt)
	if err != nil {
		log.Printf("WARN: counter store unavailable for rule %s, failing open: %v", rule.Name, err)
		return Result{
			Allowed:   true,
			Limit:     rule.Limit,
			Remaining: rule.Limit - 1,
			ResetTime: resetTime,
		}
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if int(count) > rule.Limit {
		retryAfter := ceilSeconds(windowStart + windowMs - nowMs)

		if rule.BlockDuration > 0 && l.blocks != nil {
			l.blocks.SetBlock(ctx, identifier, rule.BlockDuration)
		}

		return Result{
			Allowed:    false,
			Limit:      rule.Limit,
			Remaining:  remaining,
			ResetTime:  resetTime,
			RetryAfter: retryAfter,
		}
	}

	return Result{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
}

// ceilSeconds rounds a millisecond delta up to whole seconds.
func ceilSeconds(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration((ms+999)/1000) * time.Second
}
