package kv

import (
	"context"
	"time"

	"github.com/StricklySoft/accessguard/pkg/clients/redis"
)

// Redis is a Store over a Redis client. Keys are stored under a fixed
// namespace so several deployments can share one database.
type Redis struct {
	client    *redis.Client
	namespace string
}

var _ Store = (*Redis)(nil)

// NewRedis returns a Store writing keys as namespace+key. An empty
// namespace writes keys unchanged.
func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.client.Get(ctx, r.namespace+key)
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.namespace+key, value, ttl)
}

// TTL reports the remaining expiry of key.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, r.namespace+key)
}
