package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/validator-dashboard/internal/circuitbreaker"
	"github.com/validator-dashboard/internal/metrics"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyHistory is for per-network snapshot history
	CacheKeyHistory CacheKeyType = "history"
	// CacheKeyAggregate is for the cross-network totals history
	CacheKeyAggregate CacheKeyType = "aggregate"
)

// keyPrefix namespaces every key written by the dashboard
const keyPrefix = "vdash"

// CacheService provides JSON caching on top of Redis. Calls go through a
// circuit breaker so an unreachable Redis costs one fast error per request.
type CacheService struct {
	redis   *RedisCache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	cfg := circuitbreaker.DefaultConfig("redis")
	cfg.OnStateChange = func(s circuitbreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(metrics.BreakerStateValue(string(s)))
	}
	return NewCacheServiceWithBreaker(redis, ttl, circuitbreaker.New(cfg))
}

// NewCacheServiceWithBreaker creates a cache service guarded by breaker
func NewCacheServiceWithBreaker(redis *RedisCache, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker) *CacheService {
	return &CacheService{
		redis:   redis,
		ttl:     ttl,
		breaker: breaker,
	}
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: vdash:<type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, keyPrefix, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, ":")
}

// HistoryKey returns the key for a network's history starting at since.
// Relative ranges resolve to a day boundary, so the key is stable for a day.
// The start is keyed at nanosecond precision: explicit starts within the same
// second select different rows.
func (c *CacheService) HistoryKey(network string, since time.Time) string {
	return c.GenerateCacheKey(CacheKeyHistory, network, strconv.FormatInt(since.UnixNano(), 10))
}

// AggregateKey returns the key for the cross-network totals starting at since
func (c *CacheService) AggregateKey(since time.Time) string {
	return c.GenerateCacheKey(CacheKeyAggregate, strconv.FormatInt(since.UnixNano(), 10))
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.breaker.Execute(func() error {
		return c.redis.Set(ctx, key, data, c.ttl)
	})
}

// Get retrieves a value from cache into dest. A miss returns (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var gerr error
		data, gerr = c.redis.Get(ctx, key)
		if errors.Is(gerr, redis.Nil) {
			return nil
		}
		return gerr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}
