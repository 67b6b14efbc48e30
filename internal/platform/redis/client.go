package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trustgrid/internal/platform/config"
)

// Client wraps go-redis so callers can treat the snapshot cache backend as
// a health-checkable resource.
type Client struct {
	*redis.Client
}

// New dials Redis from config. A nil, nil return means Redis is not
// configured and the snapshot cache should be skipped.
func New(cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health pings the server; used by the /healthz aggregate.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
