package ratelimit

import "context"

// ProbeResult is the outcome of a point read against the counter store.
type ProbeResult struct {
	Value string
	Found bool
}

// CounterStore is the minimal contract the limiter needs from an
// external store. Implementations must make AtomicIncrement a single
// indivisible add-and-return per key (linearizable per key); a
// caller-side read-then-write would under-count under concurrency.
// The store may reclaim expired records lazily.
type CounterStore interface {
	// AtomicIncrement adds delta to the counter at key and returns the
	// post-increment value. On first write the record's expiry is set
	// to expireAt (epoch seconds).
	AtomicIncrement(ctx context.Context, key string, delta int64, expireAt int64) (int64, error)

	// Probe reads the record at key without side effects. A missing or
	// expired record yields Found=false, not an error.
	Probe(ctx context.Context, key string) (ProbeResult, error)

	// Put writes value at key with an expiry of expireAt (epoch seconds),
	// replacing any existing record.
	Put(ctx context.Context, key string, value string, expireAt int64) error
}
