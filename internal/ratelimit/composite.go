package ratelimit

import "context"

// FailedCheckBlocked is the CheckResult.FailedCheck value for a denial
// caused by an active block rather than by a rule counter.
const FailedCheckBlocked = "blocked"

// CompositeLimiter evaluates the block state and an ordered rule set
// for one identifier. An active block short-circuits everything: a
// blocked caller must not consume rule counters, so no further store
// calls happen. Otherwise rules run in order, each in its own
// rule-name-scoped counter space, stopping at the first denial.
type CompositeLimiter struct {
	limiter *Limiter
	blocks  *BlockRegistry
}

func NewCompositeLimiter(store CounterStore) *CompositeLimiter {
	blocks := NewBlockRegistry(store)
	return &CompositeLimiter{
		limiter: NewLimiter(store, blocks),
		blocks:  blocks,
	}
}

// Check runs the block probe and then each rule in order. The returned
// error is reserved for unexpected internal failures; the expected
// denial path is expressed entirely through CheckResult.
func (c *CompositeLimiter) Check(ctx context.Context, identifier string, rules []Rule) (CheckResult, error) {
	if blocked, retryAfter := c.blocks.IsBlocked(ctx, identifier); blocked {
		return CheckResult{
			Allowed:     false,
			FailedCheck: FailedCheckBlocked,
			Result: &Result{
				Allowed:    false,
				Remaining:  0,
				RetryAfter: retryAfter,
			},
		}, nil
	}

	// Track the rule closest to exhaustion so allowed responses can
	// still advertise meaningful limit headers.
	var tightest *Result

	for _, rule := range rules {
		result := c.limiter.CheckRateLimit(ctx, identifier, rule)
		if !result.Allowed {
			return CheckResult{
				Allowed:     false,
				FailedCheck: rule.Name,
				Result:      &result,
			}, nil
		}
		if tightest == nil || result.Remaining < tightest.Remaining {
			r := result
			tightest = &r
		}
	}

	return CheckResult{Allowed: true, Result: tightest}, nil
}
