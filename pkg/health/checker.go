package health

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckerConfig holds settings shared by dependency checks
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns the default checker settings
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{Timeout: 2 * time.Second}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client *redis.Client) func() error {
	return RedisCheckerWithConfig(client, DefaultCheckerConfig())
}

// RedisCheckerWithConfig returns a Redis check using cfg's timeout
func RedisCheckerWithConfig(client *redis.Client, cfg CheckerConfig) func() error {
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// Loaded is implemented by components that finish loading at startup
type Loaded interface {
	Ready() error
}

// ReadyChecker reports whether a startup-loaded component is usable
func ReadyChecker(component Loaded) func() error {
	return func() error {
		if component == nil {
			return errors.New("component not initialized")
		}
		return component.Ready()
	}
}
