package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory CounterStore used across the package
// tests. It records every increment key so tests can assert which
// counters were touched.
type fakeStore struct {
	mu        sync.Mutex
	counters  map[string]int64
	records   map[string]string
	expiries  map[string]int64
	incrKeys  []string
	failIncr  bool
	failProbe bool
	failPut   bool
}

var errStoreDown = errors.New("store unavailable")

func newFakeStore() *fakeStore {
	return &fakeStore{
		counters: make(map[string]int64),
		records:  make(map[string]string),
		expiries: make(map[string]int64),
	}
}

func (f *fakeStore) AtomicIncrement(_ context.Context, key string, delta int64, expireAt int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failIncr {
		return 0, errStoreDown
	}

	f.incrKeys = append(f.incrKeys, key)
	f.counters[key] += delta
	if _, exists := f.expiries[key]; !exists {
		f.expiries[key] = expireAt
	}

	return f.counters[key], nil
}

func (f *fakeStore) Probe(_ context.Context, key string) (ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failProbe {
		return ProbeResult{}, errStoreDown
	}

	value, ok := f.records[key]
	return ProbeResult{Value: value, Found: ok}, nil
}

func (f *fakeStore) Put(_ context.Context, key string, value string, expireAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPut {
		return errStoreDown
	}

	f.records[key] = value
	f.expiries[key] = expireAt
	return nil
}

func (f *fakeStore) incrCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.incrKeys)
}

// fixedClock returns a now func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckRateLimit_AllowsUpToLimitThenDenies(t *testing.T) {
	store := newFakeStore()
	limiter := NewLimiter(store, nil)
	limiter.now = fixedClock(time.UnixMilli(1_700_000_030_500))

	rule := Rule{Name: "api", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result := limiter.CheckRateLimit(ctx, "client1", rule)
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if want := 3 - i; result.Remaining != want {
			t.Fatalf("request %d: remaining = %d, want %d", i, result.Remaining, want)
		}
	}

	result := limiter.CheckRateLimit(ctx, "client1", rule)
	if result.Allowed {
		t.Fatalf("request 4 should be denied")
	}
	if result.Remaining != 0 {
		t.Fatalf("denied request remaining = %d, want 0", result.Remaining)
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("denied request should carry a positive retry-after, got %v", result.RetryAfter)
	}
}

func TestCheckRateLimit_ThreeCallScenario(t *testing.T) {
	store := newFakeStore()
	limiter := NewLimiter(store, nil)
	limiter.now = fixedClock(time.UnixMilli(1_700_000_000_200))

	rule := Rule{Name: "burst", Limit: 2, Window: time.Second}
	ctx := context.Background()

	wantAllowed := []bool{true, true, false}
	wantRemaining := []int{1, 0, 0}

	for i := 0; i < 3; i++ {
		result := limiter.CheckRateLimit(ctx, "client1", rule)
		if result.Allowed != wantAllowed[i] {
			t.Fatalf("call %d: allowed = %v, want %v", i+1, result.Allowed, wantAllowed[i])
		}
		if result.Remaining != wantRemaining[i] {
			t.Fatalf("call %d: remaining = %d, want %d", i+1, result.Remaining, wantRemaining[i])
		}
		if i == 2 && result.RetryAfter <= 0 {
			t.Fatalf("third call should have retryAfter > 0, got %v", result.RetryAfter)
		}
	}
}

func TestCheckRateLimit_WindowRollover(t *testing.T) {
	store := newFakeStore()
	limiter := NewLimiter(store, nil)

	base := time.UnixMilli(1_700_000_000_000)
	limiter.now = fixedClock(base)

	rule := Rule{Name: "api", Limit: 2, Window: time.Second}
	ctx := context.Background()

	// Exhaust the first window
	for i := 0; i < 3; i++ {
		limiter.CheckRateLimit(ctx, "client1", rule)
	}

	// Jump to the start of the next window: the key changes, so the
	// counter resets without any decrement.
	limiter.now = fixedClock(base.Add(time.Second))

	result := limiter.CheckRateLimit(ctx, "client1", rule)
	if !result.Allowed {
		t.Fatalf("first request of the new window should be allowed")
	}
	if result.Remaining != rule.Limit-1 {
		t.Fatalf("new window remaining = %d, want %d", result.Remaining, rule.Limit-1)
	}
}

func TestCheckRateLimit_FailOpen(t *testing.T) {
	store := newFakeStore()
	store.failIncr = true

	limiter := NewLimiter(store, nil)
	rule := Rule{Name: "api", Limit: 10, Window: time.Minute}

	result := limiter.CheckRateLimit(context.Background(), "client1", rule)
	if !result.Allowed {
		t.Fatalf("store failure must fail open")
	}
	if result.Remaining != rule.Limit-1 {
		t.Fatalf("fail-open remaining = %d, want %d", result.Remaining, rule.Limit-1)
	}
}

func TestCheckRateLimit_CounterTTLCoversTwoWindows(t *testing.T) {
	store := newFakeStore()
	limiter := NewLimiter(store, nil)

	now := time.UnixMilli(1_700_000_030_000)
	limiter.now = fixedClock(now)

	rule := Rule{Name: "api", Limit: 5, Window: time.Minute}
	limiter.CheckRateLimit(context.Background(), "client1", rule)

	if len(store.incrKeys) != 1 {
		t.Fatalf("expected exactly one counter key, got %d", len(store.incrKeys))
	}

	key := store.incrKeys[0]
	windowMs := rule.Window.Milliseconds()
	windowStart := now.UnixMilli() / windowMs * windowMs
	wantExpiry := (windowStart + 2*windowMs) / 1000

	if store.expiries[key] != wantExpiry {
		t.Fatalf("counter expiry = %d, want %d", store.expiries[key], wantExpiry)
	}
}

func TestCheckRateLimit_EscalatesToBlock(t *testing.T) {
	store := newFakeStore()
	blocks := NewBlockRegistry(store)
	limiter := NewLimiter(store, blocks)

	now := time.UnixMilli(1_700_000_000_000)
	limiter.now = fixedClock(now)
	blocks.now = fixedClock(now)

	rule := Rule{Name: "auth", Limit: 1, Window: time.Minute, BlockDuration: time.Hour}
	ctx := context.Background()

	limiter.CheckRateLimit(ctx, "attacker", rule)
	result := limiter.CheckRateLimit(ctx, "attacker", rule)
	if result.Allowed {
		t.Fatalf("second request should be denied")
	}

	blocked, retryAfter := blocks.IsBlocked(ctx, "attacker")
	if !blocked {
		t.Fatalf("denial with block duration should set a block")
	}
	if retryAfter <= 0 || retryAfter > time.Hour {
		t.Fatalf("block retry-after = %v, want within (0, 1h]", retryAfter)
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := []struct {
		ms   int64
		want time.Duration
	}{
		{0, 0},
		{-100, 0},
		{1, time.Second},
		{999, time.Second},
		{1000, time.Second},
		{1001, 2 * time.Second},
	}

	for _, tc := range cases {
		if got := ceilSeconds(tc.ms); got != tc.want {
			t.Fatalf("ceilSeconds(%d) = %v, want %v", tc.ms, got, tc.want)
		}
	}
}
