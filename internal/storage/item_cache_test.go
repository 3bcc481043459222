package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_code_agent/pkg"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, data any, ttl time.Duration) error {
	b, err := sonic.Marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return false, errors.New("connection refused")
	}
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, sonic.Unmarshal(b, dest)
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingProvider struct {
	fetches  atomic.Int32
	analyses atomic.Int32
	delay    time.Duration
	err      error
}

func (p *countingProvider) Fetch(ctx context.Context, key string) (*pkg.ItemData, error) {
	p.fetches.Add(1)
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &pkg.ItemData{Key: key, Summary: "summary " + key, Labels: []string{"a"}}, nil
}

func (p *countingProvider) Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error) {
	p.analyses.Add(1)
	return &pkg.Analysis{ItemKey: item.Key, Requirements: []string{item.Summary}, ComplexityScore: 4, TokensUsed: 70}, nil
}

func TestCachedItemProvider_FetchCaches(t *testing.T) {
	ctx := context.Background()
	next := &countingProvider{}
	cached := NewCachedItemProvider(next, newMemoryCache(), time.Hour)

	first, err := cached.Fetch(ctx, "ABC-1")
	require.NoError(t, err)
	first.Labels[0] = "mutated"

	second, err := cached.Fetch(ctx, "ABC-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.fetches.Load())
	assert.Equal(t, "summary ABC-1", second.Summary)
	assert.Equal(t, []string{"a"}, second.Labels)
}

func TestCachedItemProvider_Invalidate(t *testing.T) {
	ctx := context.Background()
	next := &countingProvider{}
	cached := NewCachedItemProvider(next, newMemoryCache(), time.Hour)

	_, err := cached.Fetch(ctx, "ABC-1")
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(ctx, "ABC-1"))
	_, err = cached.Fetch(ctx, "ABC-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.fetches.Load())
}

func TestCachedItemProvider_AnalyzeKeyedByContent(t *testing.T) {
	ctx := context.Background()
	next := &countingProvider{}
	cached := NewCachedItemProvider(next, newMemoryCache(), time.Hour)

	item := &pkg.ItemData{Key: "ABC-1", Summary: "v1"}
	a, err := cached.Analyze(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 70, a.TokensUsed)
	a, err = cached.Analyze(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 4, a.ComplexityScore)
	assert.Equal(t, 0, a.TokensUsed, "cache hits cost no tokens")
	assert.Equal(t, int32(1), next.analyses.Load())

	item.Summary = "v2"
	a, err = cached.Analyze(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, a.Requirements)
	assert.Equal(t, int32(2), next.analyses.Load())
}

func TestCachedItemProvider_DedupesConcurrentMisses(t *testing.T) {
	next := &countingProvider{delay: 50 * time.Millisecond}
	cached := NewCachedItemProvider(next, newMemoryCache(), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Fetch(context.Background(), "ABC-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), next.fetches.Load())
}

func TestCachedItemProvider_CancelledCallerDoesNotFailOthers(t *testing.T) {
	next := &countingProvider{delay: 200 * time.Millisecond}
	cached := NewCachedItemProvider(next, newMemoryCache(), time.Hour)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cached.Fetch(firstCtx, "ABC-1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return next.fetches.Load() == 1 }, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := cached.Fetch(context.Background(), "ABC-1")
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), next.fetches.Load())
}

func TestCachedItemProvider_FallsThrough(t *testing.T) {
	ctx := context.Background()
	cache := newMemoryCache()
	cache.failGet = true
	next := &countingProvider{}
	cached := NewCachedItemProvider(next, cache, time.Hour)

	item, err := cached.Fetch(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC-1", item.Key)

	next.err = pkg.ErrItemNotFound
	_, err = cached.Fetch(ctx, "ABC-2")
	assert.ErrorIs(t, err, pkg.ErrItemNotFound)
}

func TestRedisStorage(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	r, err := NewRedisStorage(ctx, redisURL)
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	key := "test:ticket:" + time.Now().Format(time.RFC3339Nano)
	defer r.Delete(ctx, key)

	require.NoError(t, r.SetJSON(ctx, key, pkg.ItemData{Key: "ABC-1", Summary: "cached"}, time.Minute))

	var item pkg.ItemData
	found, err := r.GetJSON(ctx, key, &item)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cached", item.Summary)

	require.NoError(t, r.Delete(ctx, key))
	found, err = r.GetJSON(ctx, key, &item)
	require.NoError(t, err)
	assert.False(t, found)
}
