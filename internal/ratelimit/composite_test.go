package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestComposite(store *fakeStore, now time.Time) *CompositeLimiter {
	c := NewCompositeLimiter(store)
	c.limiter.now = fixedClock(now)
	c.blocks.now = fixedClock(now)
	return c
}

func TestComposite_AllRulesPass(t *testing.T) {
	store := newFakeStore()
	c := newTestComposite(store, time.UnixMilli(1_700_000_000_000))

	rules := []Rule{
		{Name: "global", Limit: 100, Window: time.Minute},
		{Name: "orders", Limit: 60, Window: time.Minute},
	}

	check, err := c.Check(context.Background(), "client1", rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !check.Allowed {
		t.Fatalf("expected allow, got failed check %q", check.FailedCheck)
	}
	if check.Result == nil || check.Result.Limit != 60 {
		t.Fatalf("expected the tightest rule's result to be surfaced, got %+v", check.Result)
	}
	if store.incrCount() != 2 {
		t.Fatalf("expected both rule counters incremented, got %d", store.incrCount())
	}
}

func TestComposite_FirstDenialShortCircuits(t *testing.T) {
	store := newFakeStore()
	now := time.UnixMilli(1_700_000_000_000)
	c := newTestComposite(store, now)

	rules := []Rule{
		{Name: "r1", Limit: 1, Window: time.Minute},
		{Name: "r2", Limit: 100, Window: time.Minute},
	}

	ctx := context.Background()
	c.Check(ctx, "client1", rules)

	check, _ := c.Check(ctx, "client1", rules)
	if check.Allowed {
		t.Fatalf("second request should be denied by r1")
	}
	if check.FailedCheck != "r1" {
		t.Fatalf("failed check = %q, want r1", check.FailedCheck)
	}

	// r2's counter must never be touched once r1 denied.
	for _, key := range store.incrKeys {
		if strings.HasPrefix(key, keyPrefix+":r2:") && store.counters[key] > 1 {
			t.Fatalf("r2 counter incremented past the first request: %v", store.counters)
		}
	}
	if store.incrCount() != 3 {
		t.Fatalf("expected 3 increments (r1+r2, then r1 only), got %d", store.incrCount())
	}
}

func TestComposite_BlockedSkipsAllCounters(t *testing.T) {
	store := newFakeStore()
	now := time.UnixMilli(1_700_000_000_000)
	c := newTestComposite(store, now)

	ctx := context.Background()
	c.blocks.SetBlock(ctx, "client1", 10*time.Minute)

	rules := []Rule{{Name: "global", Limit: 100, Window: time.Minute}}

	check, err := c.Check(ctx, "client1", rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Allowed {
		t.Fatalf("blocked identifier must be denied")
	}
	if check.FailedCheck != FailedCheckBlocked {
		t.Fatalf("failed check = %q, want %q", check.FailedCheck, FailedCheckBlocked)
	}
	if check.Result.RetryAfter <= 0 {
		t.Fatalf("blocked denial should carry retry-after")
	}

	// A blocked caller must not consume rule-scoped counters.
	if store.incrCount() != 0 {
		t.Fatalf("expected no counter increments for blocked caller, got %d", store.incrCount())
	}
}

func TestComposite_AuthProfileEscalation(t *testing.T) {
	store := newFakeStore()
	now := time.UnixMilli(1_700_000_000_000)
	c := newTestComposite(store, now)

	rules := []Rule{AuthRule()}
	ctx := context.Background()

	// Five failed logins fit in the window.
	for i := 1; i <= 5; i++ {
		check, _ := c.Check(ctx, "203.0.113.7", rules)
		if !check.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
	}

	// The sixth is denied by the counter and triggers the block.
	check, _ := c.Check(ctx, "203.0.113.7", rules)
	if check.Allowed || check.FailedCheck != "auth" {
		t.Fatalf("call 6: allowed=%v failedCheck=%q, want denial by auth", check.Allowed, check.FailedCheck)
	}

	incrsBefore := store.incrCount()

	// One second later the seventh call is denied by the block path,
	// not by re-evaluating the counter.
	later := now.Add(time.Second)
	c.limiter.now = fixedClock(later)
	c.blocks.now = fixedClock(later)

	check, _ = c.Check(ctx, "203.0.113.7", rules)
	if check.Allowed || check.FailedCheck != FailedCheckBlocked {
		t.Fatalf("call 7: allowed=%v failedCheck=%q, want blocked", check.Allowed, check.FailedCheck)
	}
	if store.incrCount() != incrsBefore {
		t.Fatalf("blocked call must not increment counters")
	}
}

func TestComposite_SeparateIdentifiersDoNotInterfere(t *testing.T) {
	store := newFakeStore()
	c := newTestComposite(store, time.UnixMilli(1_700_000_000_000))

	rules := []Rule{{Name: "api", Limit: 1, Window: time.Minute}}
	ctx := context.Background()

	c.Check(ctx, "client1", rules)
	c.Check(ctx, "client1", rules) // exhausts client1

	check, _ := c.Check(ctx, "client2", rules)
	if !check.Allowed {
		t.Fatalf("client2 must not be affected by client1's counters")
	}
}
