package ratelimit

import (
	"context"
	"log"
	"strconv"
	"time"
)

// blockTTLMargin keeps a block record in the store past its logical
// expiry so a slow TTL reaper can never drop a live block.
const blockTTLMargin = time.Minute

// BlockRegistry escalates repeated violations into a time-boxed block
// of the identifier. Blocking is best-effort hardening on top of the
// counters, not a correctness guarantee: every store failure degrades
// to "not blocked".
type BlockRegistry struct {
	store CounterStore
	now   func() time.Time
}

func NewBlockRegistry(store CounterStore) *BlockRegistry {
	return &BlockRegistry{store: store, now: time.Now}
}

func blockKey(identifier string) string {
	return keyPrefix + ":block:" + identifier
}

// SetBlock records a block until now+duration. Write failures are
// logged and swallowed.
func (b *BlockRegistry) SetBlock(ctx context.Context, identifier string, duration time.Duration) {
	blockUntil := b.now().Add(duration).UnixMilli()
	expireAt := blockUntil/1000 + int64(blockTTLMargin.Seconds())

	err := b.store.Put(ctx, blockKey(identifier), strconv.FormatInt(blockUntil, 10), expireAt)
	if err != nil {
		log.Printf("WARN: failed to set block for %s: %v", identifier, err)
	}
}

// IsBlocked probes the block record without side effects. Only a
// record whose blockUntil is strictly in the future counts as blocked;
// a missing record, a naturally expired one, garbage data, or any
// store error all yield false.
func (b *BlockRegistry) IsBlocked(ctx context.Context, identifier string) (bool, time.Duration) {
	probe, err := b.store.Probe(ctx, blockKey(identifier))
	if err != nil {
		log.Printf("WARN: block probe failed for %s: %v", identifier, err)
		return false, 0
	}
	if !probe.Found {
		return false, 0
	}

	blockUntil, err := strconv.ParseInt(probe.Value, 10, 64)
	if err != nil {
		log.Printf("WARN: malformed block record for %s: %q", identifier, probe.Value)
		return false, 0
	}

	nowMs := b.now().UnixMilli()
	if blockUntil <= nowMs {
		return false, 0
	}

	return true, ceilSeconds(blockUntil - nowMs)
}
