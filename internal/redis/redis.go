// Package redis wraps the go-redis client used by the rate limiter and the session denylist.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Client embeds the go-redis client so callers get the full command set.
type Client struct {
	*goredis.Client
}

// New connects to addr and pings it. The returned client must be closed by the caller.
func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Client{Client: client}, nil
}

// PingContext satisfies the readiness Pinger used by the health checker.
func (c *Client) PingContext(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
