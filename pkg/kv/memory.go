package kv

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cleanupInterval is how often expired entries are purged.
const cleanupInterval = time.Minute

// Memory is an in-process Store backed by go-cache. Values are copied on
// the way in and out.
type Memory struct {
	c *gocache.Cache
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns a copy of the value at key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// Set stores a copy of value. A ttl <= 0 keeps the key until it is
// overwritten.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.c.Delete(key)
}

// Len reports the number of entries, including expired ones not yet
// purged.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
