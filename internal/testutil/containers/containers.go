//go:build integration

// Package containers starts throwaway service containers for integration
// tests. It is built only with the "integration" tag so unit test builds
// do not need Docker.
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// DefaultRedisImage is the image StartRedis runs.
const DefaultRedisImage = "redis:7-alpine"

// RedisResult is a running Redis container.
type RedisResult struct {
	Container *tcredis.RedisContainer

	// ConnString is a redis:// URI for redis.Config.URI.
	ConnString string
}

// StartRedis runs DefaultRedisImage and waits until it accepts
// connections.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}
	return &RedisResult{Container: container, ConnString: connStr}, nil
}
