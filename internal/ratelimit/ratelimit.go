// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit provides a fixed-window counter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Limiter allows at most Limit events per key within Window.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// New creates a limiter. Keys are namespaced with prefix.
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts one event for key. When the window is exhausted it returns
// false and the time until the window resets. Redis errors fail open: the
// event is allowed and the error returned for logging.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	cnt, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, fmt.Errorf("incr %s: %w", k, err)
	}
	if cnt == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, 0, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	if cnt <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// a key without expiry would block forever; restart the window
		_ = l.client.Expire(ctx, k, l.window).Err()
		ttl = l.window
	}
	return false, ttl, nil
}
