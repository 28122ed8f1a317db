// Package redis caches query embeddings in Redis.
//
// Keys are sha256 digests of the model and normalised query text, so the cache
// never stores raw queries. Concurrent misses for the same key share one
// provider call through singleflight.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "brief:qvec:"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 24 * time.Hour

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// kv is the subset of Redis the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a Redis-backed driven.EmbeddingCache.
// Redis failures degrade to computing the vector; they are logged, not returned.
type Cache struct {
	store  kv
	ttl    time.Duration
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg Config) (*Cache, func() error, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newCache(&redisKV{rdb: rdb}, cfg.TTL), rdb.Close, nil
}

func newCache(store kv, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// GetOrCompute returns the cached vector for key or computes and stores it.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) ([]float32, error),
) ([]float32, bool, error) {
	hashed := buildKey(key)

	if v, ok := c.get(ctx, hashed); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(hashed, func() (any, error) {
		if v, ok := c.get(ctx, hashed); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, hashed, encodeVector(v), c.ttl); err != nil {
			logger.Warn("Query cache write failed: %v", err)
		}
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]float32), false, nil
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warn("Query cache read failed: %v", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	v, ok := decodeVector(data)
	if !ok {
		logger.Warn("Query cache entry %s is corrupt, recomputing", key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v, true
}

func buildKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x", KeyPrefix, hash[:16])
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, true
}

// redisKV adapts a go-redis client to kv.
type redisKV struct {
	rdb *goredis.Client
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	return r.rdb.Get(ctx, key).Bytes()
}

func (r *redisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}
