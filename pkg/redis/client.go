package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Client wraps the Redis client with logging
type Client struct {
	rdb    redis.UniversalClient
	logger ectologger.Logger
}

// NewClient creates a new Redis client and checks the connection
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Infof("Connected to Redis at %s", addr)

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewClientFrom wraps an existing go-redis client
func NewClientFrom(rdb redis.UniversalClient, logger ectologger.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Cache is a registry response cache stored in Redis under a key prefix
type Cache struct {
	client *Client
	prefix string
}

// NewCache returns a response cache over the client
func NewCache(client *Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "bramble:registry:"
	}
	return &Cache{client: client, prefix: prefix}
}

// Get returns the cached value for key. A missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key. A zero ttl keeps the value until evicted.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Invalidate removes every cached response
func (c *Cache) Invalidate(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	c.client.logger.WithContext(ctx).Infof("Invalidated %d cached registry responses", len(keys))
	return len(keys), nil
}
