package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	store := newMemKV()
	c := newCache(store, time.Hour)
	calls := 0
	compute := func(context.Context) ([]float32, error) {
		calls++
		return []float32{0.25, -1, 3}, nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), "model:query", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float32{0.25, -1, 3}, v)

	v, hit, err = c.GetOrCompute(context.Background(), "model:query", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []float32{0.25, -1, 3}, v)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)

	key := buildKey("model:query")
	assert.Equal(t, time.Hour, store.ttls[key])
	assert.NotContains(t, key, "query")
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	store := newMemKV()
	c := newCache(store, 0)
	boom := errors.New("provider down")

	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) ([]float32, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestGetOrCompute_RedisFailuresDegrade(t *testing.T) {
	store := newMemKV()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := newCache(store, time.Minute)

	v, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) ([]float32, error) {
		return []float32{1}, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float32{1}, v)
}

func TestGetOrCompute_CorruptEntryRecomputed(t *testing.T) {
	store := newMemKV()
	store.data[buildKey("k")] = []byte{1, 2, 3}
	c := newCache(store, time.Minute)

	v, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) ([]float32, error) {
		return []float32{2}, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float32{2}, v)
}

func TestGetOrCompute_ConcurrentMissesShareCompute(t *testing.T) {
	c := newCache(newMemKV(), time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "same", func(context.Context) ([]float32, error) {
				calls.Add(1)
				<-release
				return []float32{1, 2}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []float32{1, 2}, v)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestDecodeVector(t *testing.T) {
	_, ok := decodeVector(nil)
	assert.False(t, ok)

	v, ok := decodeVector(encodeVector([]float32{1.5}))
	assert.True(t, ok)
	assert.Equal(t, []float32{1.5}, v)
}
