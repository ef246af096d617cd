package ratelimit

import (
	"fmt"
	"time"
)

// Result is the outcome of evaluating one rule for one identifier.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// CheckResult is the outcome of evaluating an ordered rule set.
// FailedCheck names the rule that denied the request, or "blocked"
// when the identifier carries an active block.
type CheckResult struct {
	Allowed     bool
	FailedCheck string
	Result      *Result
}

// RateLimitError is the typed denial handed to the HTTP boundary. It
// is an expected control signal, not a failure; store outages and
// internal bugs never surface as this type.
type RateLimitError struct {
	RetryAfter  time.Duration
	Limit       int
	Remaining   int
	FailedCheck string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %ds", e.FailedCheck, int(e.RetryAfter.Seconds()))
}
