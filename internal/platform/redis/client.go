package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	dErrors "dealroom/pkg/domain-errors"
)

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
}

// New creates a Redis client from a URL and verifies the connection.
// Returns (nil, nil) when the URL is empty: Redis not configured, the
// coordinator falls back to its in-process claim store.
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse redis URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "redis ping failed")
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}
