package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryClient is a bounded LRU cache for single-process deployments.
// maxAge bounds every entry; a shorter per-call TTL is honoured on read.
// A negative TTL removes the key.
type MemoryClient struct {
	lru *expirable.LRU[string, memEntry]
	now func() time.Time
}

type memEntry struct {
	value   []byte
	expires time.Time // zero = only maxAge applies
}

// NewMemoryClient creates a cache holding at most capacity summaries, each for
// at most maxAge (0 = no age limit).
func NewMemoryClient(capacity int, maxAge time.Duration) *MemoryClient {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryClient{
		lru: expirable.NewLRU[string, memEntry](capacity, nil, maxAge),
		now: time.Now,
	}
}

func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		c.lru.Remove(key)
		return nil
	}
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (c *MemoryClient) Len() int {
	return c.lru.Len()
}

// Close purges the cache.
func (c *MemoryClient) Close() error {
	c.lru.Purge()
	return nil
}
