package intent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PatternCacheTTL bounds how stale the cached pattern set may be. Serving
// slightly stale patterns is the explicit tradeoff for avoiding a repository
// round-trip on every classification.
const PatternCacheTTL = 5 * time.Minute

// PatternSource supplies the active pattern set, typically backed by the
// pattern repository.
type PatternSource interface {
	ListActivePatterns(ctx context.Context) ([]Pattern, error)
}

type patternSnapshot struct {
	patterns  []Pattern
	fetchedAt time.Time
}

// PatternCache is a time-boxed read-through cache of active patterns.
// Reads of an unexpired snapshot are lock-free; refresh uses double-checked
// locking so at most one caller hits the repository at a time.
type PatternCache struct {
	source PatternSource
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	snapshot atomic.Pointer[patternSnapshot]
}

// NewPatternCache creates a pattern cache with the default TTL.
func NewPatternCache(source PatternSource, logger *zap.Logger) *PatternCache {
	return &PatternCache{
		source: source,
		logger: logger,
		ttl:    PatternCacheTTL,
		now:    time.Now,
	}
}

// Get returns the cached active patterns, refreshing from the source when
// the snapshot is missing or older than the TTL.
func (c *PatternCache) Get(ctx context.Context) ([]Pattern, error) {
	if snap := c.snapshot.Load(); snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl {
		return snap.patterns, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if snap := c.snapshot.Load(); snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl {
		return snap.patterns, nil
	}

	patterns, err := c.source.ListActivePatterns(ctx)
	if err != nil {
		// Serve the stale snapshot if we have one; classification beats
		// freshness when the repository is unavailable.
		if snap := c.snapshot.Load(); snap != nil {
			c.logger.Warn("Pattern refresh failed, serving stale snapshot",
				zap.Error(err),
				zap.Duration("age", c.now().Sub(snap.fetchedAt)))
			return snap.patterns, nil
		}
		return nil, fmt.Errorf("failed to load active patterns: %w", err)
	}

	c.snapshot.Store(&patternSnapshot{
		patterns:  patterns,
		fetchedAt: c.now(),
	})

	c.logger.Debug("Refreshed pattern cache", zap.Int("patterns", len(patterns)))
	return patterns, nil
}

// Invalidate drops the cached snapshot so the next read refreshes.
func (c *PatternCache) Invalidate() {
	c.snapshot.Store(nil)
}
