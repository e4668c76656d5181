// Package cache stores raw backend responses in redis so repeated runs over
// the same cases skip the network. It is optional; the runner works without
// it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/search"
	"github.com/minewatch/backend/pkg/logger"
	"github.com/minewatch/backend/pkg/utils"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Search cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetResponse(ctx context.Context, query string, resp search.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, key(query), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}

	return nil
}

func (c *Client) GetResponse(ctx context.Context, query string) (search.Response, bool, error) {
	data, err := c.client.Get(ctx, key(query)).Bytes()
	if err == redis.Nil {
		return search.Response{}, false, nil
	}
	if err != nil {
		return search.Response{}, false, fmt.Errorf("failed to read cache: %w", err)
	}

	var resp search.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return search.Response{}, false, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	return resp, true, nil
}

func key(query string) string {
	return fmt.Sprintf("search:%s", utils.HashString(query))
}
