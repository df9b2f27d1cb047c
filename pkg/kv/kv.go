// Package kv provides the key-value stores the key set cache runs on: an
// in-process store for single-instance deployments and tests, and a Redis
// store shared by every instance of a service.
//
// Both satisfy access.Store.
package kv

import (
	"context"
	"time"
)

// Store is a byte-valued store with per-key expiry. A missing or expired
// key is reported as found == false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
