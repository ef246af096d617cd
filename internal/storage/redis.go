package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quotaguard/gateway/internal/circuitbreaker"
	"github.com/quotaguard/gateway/internal/ratelimit"
)

// incrScript adds the delta and stamps the expiry in one script call so
// concurrent handlers always see a post-increment value from a single
// indivisible operation. The expiry is only set when the increment
// created the record.
var incrScript = redis.NewScript(`
local value = redis.call("INCRBY", KEYS[1], ARGV[1])
if value == tonumber(ARGV[1]) then
	redis.call("EXPIREAT", KEYS[1], ARGV[2])
end
return value
`)

// RedisClient wraps go-redis as the gateway's counter store. Every
// operation carries a short client-side timeout and runs behind a
// circuit breaker: when Redis is down the limiter should fail open
// immediately instead of eating the timeout on each request.
type RedisClient struct {
	client    *redis.Client
	breaker   *circuitbreaker.CircuitBreaker
	opTimeout time.Duration
}

var _ ratelimit.CounterStore = (*RedisClient)(nil)

func NewRedis(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{
		client: client,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			MaxFailures: 3,
			Cooldown:    10 * time.Second,
		}),
		opTimeout: time.Second,
	}, nil
}

// AtomicIncrement adds delta at key and returns the post-increment
// value, setting the expiry (epoch seconds) on first write.
func (r *RedisClient) AtomicIncrement(ctx context.Context, key string, delta int64, expireAt int64) (int64, error) {
	if err := r.breaker.Allow(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	value, err := incrScript.Run(ctx, r.client, []string{key}, delta, expireAt).Int64()
	r.breaker.Record(err)
	if err != nil {
		return 0, fmt.Errorf("atomic increment of %s: %w", key, err)
	}

	return value, nil
}

// Probe performs a plain point read. A missing key is not an error.
func (r *RedisClient) Probe(ctx context.Context, key string) (ratelimit.ProbeResult, error) {
	if err := r.breaker.Allow(); err != nil {
		return ratelimit.ProbeResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		r.breaker.Record(nil)
		return ratelimit.ProbeResult{}, nil
	}
	r.breaker.Record(err)
	if err != nil {
		return ratelimit.ProbeResult{}, fmt.Errorf("probe of %s: %w", key, err)
	}

	return ratelimit.ProbeResult{Value: value, Found: true}, nil
}

// Put writes value at key with an expiry of expireAt (epoch seconds).
func (r *RedisClient) Put(ctx context.Context, key string, value string, expireAt int64) error {
	if err := r.breaker.Allow(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	ttl := time.Until(time.Unix(expireAt, 0))
	if ttl <= 0 {
		ttl = time.Second
	}

	err := r.client.Set(ctx, key, value, ttl).Err()
	r.breaker.Record(err)
	if err != nil {
		return fmt.Errorf("put of %s: %w", key, err)
	}

	return nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// BreakerState exposes the store breaker state for health reporting.
func (r *RedisClient) BreakerState() string {
	return r.breaker.State().String()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
