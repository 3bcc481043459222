package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"jira_code_agent/internal/core"
	"jira_code_agent/pkg"
	"jira_code_agent/src/logger"
)

const sharedCallTimeout = 2 * time.Minute

// JSONCache is the subset of RedisStorage the item cache needs
type JSONCache interface {
	SetJSON(ctx context.Context, key string, data any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// CachedItemProvider caches fetched tickets and their analyses. Concurrent misses
// for one key share a single upstream call. Cache failures fall through to the
// wrapped provider.
type CachedItemProvider struct {
	next  core.ItemProvider
	cache JSONCache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedItemProvider wraps next with cache
func NewCachedItemProvider(next core.ItemProvider, cache JSONCache, ttl time.Duration) *CachedItemProvider {
	return &CachedItemProvider{next: next, cache: cache, ttl: ttl}
}

// Fetch returns the cached ticket or fetches and caches it
func (c *CachedItemProvider) Fetch(ctx context.Context, key string) (*pkg.ItemData, error) {
	cacheKey := ticketKey(key)
	v, err := c.shared(ctx, cacheKey, func(ctx context.Context) (any, error) {
		var item pkg.ItemData
		if c.load(ctx, cacheKey, &item) {
			return &item, nil
		}
		fetched, err := c.next.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		c.store(ctx, cacheKey, fetched)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneItem(v.(*pkg.ItemData)), nil
}

// Analyze caches by ticket key and content so edited tickets are re-analyzed.
// A cache hit reports no token usage.
func (c *CachedItemProvider) Analyze(ctx context.Context, item *pkg.ItemData) (*pkg.Analysis, error) {
	if item == nil {
		return c.next.Analyze(ctx, item)
	}
	cacheKey := analysisKey(item)
	v, err := c.shared(ctx, cacheKey, func(ctx context.Context) (any, error) {
		var analysis pkg.Analysis
		if c.load(ctx, cacheKey, &analysis) {
			analysis.TokensUsed = 0
			return &analysis, nil
		}
		analyzed, err := c.next.Analyze(ctx, item)
		if err != nil {
			return nil, err
		}
		c.store(ctx, cacheKey, analyzed)
		return analyzed, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAnalysis(v.(*pkg.Analysis)), nil
}

// shared runs fn once per key for all concurrent callers. The call is detached
// from any single caller's cancellation and bounded by sharedCallTimeout; each
// caller still returns as soon as its own ctx is done.
func (c *CachedItemProvider) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached ticket. Analyses are keyed by content and need no invalidation.
func (c *CachedItemProvider) Invalidate(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, ticketKey(key))
}

func (c *CachedItemProvider) load(ctx context.Context, key string, dest any) bool {
	found, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read failed")
		return false
	}
	if found {
		logger.Debug().Str("cache_key", key).Msg("Cache hit")
	}
	return found
}

func (c *CachedItemProvider) store(ctx context.Context, key string, data any) {
	if err := c.cache.SetJSON(ctx, key, data, c.ttl); err != nil {
		logger.Warn().Err(err).Str("cache_key", key).Msg("Cache write failed")
	}
}

func ticketKey(key string) string {
	return "ticket:" + key
}

func analysisKey(item *pkg.ItemData) string {
	h := xxhash.New()
	_, _ = h.WriteString(item.Summary)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(item.Description)
	return fmt.Sprintf("analysis:%s:%s", item.Key, strconv.FormatUint(h.Sum64(), 16))
}

func cloneItem(item *pkg.ItemData) *pkg.ItemData {
	return (&pkg.Session{Item: item}).Clone().Item
}

func cloneAnalysis(a *pkg.Analysis) *pkg.Analysis {
	return (&pkg.Session{Analysis: a}).Clone().Analysis
}
