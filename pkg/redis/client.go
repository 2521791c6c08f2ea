package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

var pingClient = func(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}

// NewClient parses url, applies password and checks the server is reachable
func NewClient(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	if password != "" {
		opts.Password = password
	}

	c := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := pingClient(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Ping reports whether the server behind c answers. A nil client is healthy.
func Ping(ctx context.Context, c *redis.Client) error {
	if c == nil {
		return nil
	}
	return pingClient(ctx, c)
}
