// Package redis wraps the go-redis client used by the analytics cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"timeclock/internal/platform/config"
)

// Client embeds the go-redis client and adds a health probe for /healthz.
type Client struct {
	*redis.Client
}

// New dials Redis from the environment configuration. Redis is optional
// here: an empty URL returns a nil client and callers skip caching.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	// Pool and timeout settings come from config, not the URL.
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	// Fail startup on an unreachable Redis rather than limping along with a
	// cache that errors on every read.
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection is usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
