package analyst

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	errx "github.com/retail-analyst/server/internal/core/error"
	logx "github.com/retail-analyst/server/pkg/logger"
	"github.com/retail-analyst/server/pkg/metrics"
)

// Analyzer answers a question.
type Analyzer interface {
	Analyze(ctx context.Context, question string) (string, error)
}

type cacheEntry struct {
	answer string
	stored time.Time
}

// CachedAnalyst memoizes answers by the exact question string. The cache is
// bounded, entries optionally expire, concurrent identical questions share one
// call, and failures are never stored.
type CachedAnalyst struct {
	next Analyzer
	ttl  time.Duration
	now  func() time.Time

	mu         sync.Mutex
	entries    *lru.Cache
	generation uint64
	flight     singleflight.Group
}

// NewCachedAnalyst wraps next. capacity <= 0 selects 256 entries; ttl <= 0
// keeps entries until evicted or invalidated.
func NewCachedAnalyst(next Analyzer, capacity int, ttl time.Duration) *CachedAnalyst {
	if capacity <= 0 {
		capacity = 256
	}
	return &CachedAnalyst{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: lru.New(capacity),
	}
}

func (c *CachedAnalyst) lookup(question string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(question)
	if !ok {
		return "", false
	}
	e := v.(cacheEntry)
	if c.ttl > 0 && c.now().Sub(e.stored) > c.ttl {
		c.entries.Remove(question)
		return "", false
	}
	return e.answer, true
}

// store keeps answer unless the cache was invalidated since generation was read.
func (c *CachedAnalyst) store(question, answer string, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries.Add(question, cacheEntry{answer: answer, stored: c.now()})
}

// Analyze returns the cached answer for question or asks the wrapped analyzer.
func (c *CachedAnalyst) Analyze(ctx context.Context, question string) (string, error) {
	if answer, ok := c.lookup(question); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		logx.Debug().Str("cache", "hit").Int("question_len", len(question)).Msg("answer served from cache")
		return answer, nil
	}

	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	// The shared call must outlive any single caller giving up. Calls started
	// before an invalidation are never joined after it.
	callCtx := context.WithoutCancel(ctx)
	key := fmt.Sprintf("%d\x00%s", generation, question)
	ch := c.flight.DoChan(key, func() (any, error) {
		answer, err := c.next.Analyze(callCtx, question)
		if err != nil {
			return "", err
		}
		c.store(question, answer, generation)
		return answer, nil
	})

	select {
	case <-ctx.Done():
		return "", errx.Reasoning(ctx.Err())
	case res := <-ch:
		if res.Shared {
			metrics.CacheLookups.WithLabelValues("shared").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops every cached answer. Calls in flight do not repopulate the cache.
func (c *CachedAnalyst) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
	c.generation++
	logx.Info().Str("cache", "invalidate").Msg("response cache cleared")
}

// Len returns the number of cached answers.
func (c *CachedAnalyst) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
