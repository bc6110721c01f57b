package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/ridedemand/pkg/config"
)

// ErrCacheMiss is returned by GetBytes when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client and verifies the connection
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Wrap adapts an existing go-redis client, e.g. one from redismock
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

// SetBytes stores value under key with expiration
func (c *Client) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration).Err()
}

// GetBytes loads the value under key, returning ErrCacheMiss when absent
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
