// Package cache provides in-process implementations of ports.CacheStore.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// Default sizing for TTLCache.
const (
	DefaultSize = 1024
	DefaultTTL  = 45 * time.Second
)

// entry pairs a cached value with its own deadline. The LRU enforces the
// store-wide TTL; shorter per-entry expirations are checked on read.
type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is a size-bounded LRU whose entries expire after a fixed TTL.
// It implements ports.CacheStore for a single process.
//
// Expirations passed to Set are capped at the store TTL.
type TTLCache struct {
	lru *expirable.LRU[string, entry]
	ttl time.Duration
	now func() time.Time
}

// NewTTLCache creates a cache holding at most size entries, each for at
// most ttl. Non-positive arguments fall back to DefaultSize and DefaultTTL.
func NewTTLCache(size int, ttl time.Duration) *TTLCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache{
		lru: expirable.NewLRU[string, entry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *TTLCache) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, ports.NewCacheError(key, "get", err)
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A zero expiration uses the store TTL.
func (c *TTLCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	if expiration < 0 {
		return ports.NewCacheError(key, "set", errors.New("negative expiration"))
	}
	if expiration == 0 || expiration > c.ttl {
		expiration = c.ttl
	}
	c.lru.Add(key, entry{value: value, expiresAt: c.now().Add(expiration)})
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear removes every entry.
func (c *TTLCache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of entries, including ones not yet swept.
func (c *TTLCache) Len() int { return c.lru.Len() }

var _ ports.CacheStore = (*TTLCache)(nil)
