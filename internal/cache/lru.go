// Package cache memoizes redirect decisions for repeated request URLs.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linkshift/redirector/internal/domain"
)

// DefaultMaxSize bounds the cache when no size is configured
const DefaultMaxSize = 10000

// entry is one element of the recency list
type entry struct {
	key      string
	decision *domain.Decision
	prev     *entry
	next     *entry
}

// DecisionLRU is a size-bounded decision cache with least-recently-used eviction.
// Stored and returned decisions are private copies.
type DecisionLRU struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*entry

	// sentinel nodes; head.next is the most recently used entry
	head *entry
	tail *entry

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewDecisionLRU creates a cache holding at most maxSize decisions
func NewDecisionLRU(maxSize int) *DecisionLRU {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	head, tail := &entry{}, &entry{}
	head.next, tail.prev = tail, head
	return &DecisionLRU{
		maxSize: maxSize,
		entries: make(map[string]*entry),
		head:    head,
		tail:    tail,
	}
}

// Get returns a copy of the decision stored under key, flagged as a cache hit
func (c *DecisionLRU) Get(key string) (*domain.Decision, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.unlink(e)
		c.pushFront(e)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	out := e.decision.Clone()
	out.CacheHit = true
	return out, true
}

// Set stores a copy of decision under key
func (c *DecisionLRU) Set(key string, decision *domain.Decision) {
	stored := decision.Clone()
	stored.CacheHit = false

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = stored
		c.unlink(e)
		c.pushFront(e)
		return
	}

	e := &entry{key: key, decision: stored}
	c.entries[key] = e
	c.pushFront(e)

	for len(c.entries) > c.maxSize {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.entries, oldest.key)
		c.evictions.Add(1)
	}
}

// Invalidate removes key
func (c *DecisionLRU) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *DecisionLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head.next, c.tail.prev = c.tail, c.head
}

// Stats returns current cache statistics
func (c *DecisionLRU) Stats() domain.CacheStats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return domain.CacheStats{
		Hits:     hits,
		Misses:   misses,
		Size:     size,
		MaxSize:  c.maxSize,
		HitRatio: ratio,
	}
}

// Evictions returns how many entries were dropped for capacity
func (c *DecisionLRU) Evictions() int64 {
	return c.evictions.Load()
}

// HealthCheck reports degraded when the cache is nearly full or rarely hit
func (c *DecisionLRU) HealthCheck(ctx context.Context) domain.HealthStatus {
	stats := c.Stats()

	status := domain.HealthStatusHealthy
	message := "Decision cache is operating normally"
	details := map[string]any{
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_ratio": stats.HitRatio,
		"evictions": c.evictions.Load(),
	}

	if stats.Size >= stats.MaxSize*9/10 {
		status = domain.HealthStatusDegraded
		message = "Decision cache is near capacity"
	}
	if stats.Hits+stats.Misses > 100 && stats.HitRatio < 0.5 {
		details["hit_ratio_warning"] = "Hit ratio below 50%"
		if status == domain.HealthStatusHealthy {
			status = domain.HealthStatusDegraded
			message = "Low decision cache hit ratio"
		}
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func (c *DecisionLRU) pushFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *DecisionLRU) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}
