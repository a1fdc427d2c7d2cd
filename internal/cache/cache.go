// Package cache is a small TTL cache for public directory responses.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a cache built with a non-positive size.
const DefaultMaxEntries = 1024

type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	max int
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	val any
	exp time.Time
}

// New builds a cache holding at most maxEntries keys. Keys may come from
// client input, so the size is always bounded.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{
		ttl: ttl,
		max: maxEntries,
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) Get(key string) (any, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}

	return e.val, true
}

// Set stores val. A new key on a full cache first drops expired entries,
// then the entry closest to expiry.
func (c *Cache) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.m[key]; !exists && len(c.m) >= c.max {
		if c.sweepLocked(now) == 0 {
			c.evictOldestLocked()
		}
	}
	c.m[key] = entry{val: val, exp: now.Add(c.ttl)}
}

func (c *Cache) evictOldestLocked() {
	var (
		oldest string
		exp    time.Time
		found  bool
	)
	for k, e := range c.m {
		if !found || e.exp.Before(exp) {
			oldest, exp, found = k, e.exp, true
		}
	}
	if found {
		delete(c.m, oldest)
	}
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

// Sweep drops expired entries and reports how many went.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// RunSweeper sweeps every interval until stop is closed.
func (c *Cache) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// DeletePrefix drops every key starting with prefix.
func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
