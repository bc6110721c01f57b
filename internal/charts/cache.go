package charts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/pkg/logger"
	"github.com/richxcame/ridedemand/pkg/redis"
	"github.com/richxcame/ridedemand/pkg/resilience"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ridedemand_chart_cache_total",
	Help: "Chart cache lookups by layer and result",
}, []string{"layer", "result"})

// RenderFunc produces the bytes for one cache key
type RenderFunc func(ctx context.Context) ([]byte, error)

// Cache holds rendered charts in memory, optionally shared through Redis.
// Keys embed the dataset or model version, so entries never go stale; a new
// version simply misses. Failed renders are not cached.
type Cache struct {
	mu    sync.RWMutex
	local map[string][]byte
	group singleflight.Group

	remote  *redis.Client
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
}

// NewCache creates a cache. remote may be nil to keep charts in memory only.
func NewCache(remote *redis.Client, breaker *resilience.CircuitBreaker, ttl time.Duration) *Cache {
	if remote != nil && breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.BuildSettings("chart-cache", 0, 0, 0, 0))
	}
	return &Cache{
		local:   make(map[string][]byte),
		remote:  remote,
		breaker: breaker,
		ttl:     ttl,
	}
}

// Get returns the cached bytes for key, rendering them at most once per
// concurrent burst of callers
func (c *Cache) Get(ctx context.Context, key string, render RenderFunc) ([]byte, error) {
	if data, ok := c.lookupLocal(key); ok {
		cacheLookups.WithLabelValues("memory", "hit").Inc()
		return data, nil
	}
	cacheLookups.WithLabelValues("memory", "miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.lookupLocal(key); ok {
			return data, nil
		}

		if data, ok := c.lookupRemote(ctx, key); ok {
			c.storeLocal(key, data)
			return data, nil
		}

		data, err := render(ctx)
		if err != nil {
			return nil, err
		}
		c.storeLocal(key, data)
		c.storeRemote(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Len returns the number of charts held in memory
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.local)
}

func (c *Cache) lookupLocal(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.local[key]
	return data, ok
}

func (c *Cache) storeLocal(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = data
}

func (c *Cache) lookupRemote(ctx context.Context, key string) ([]byte, bool) {
	if c.remote == nil {
		return nil, false
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		data, err := c.remote.GetBytes(ctx, key)
		if errors.Is(err, redis.ErrCacheMiss) {
			return []byte(nil), nil
		}
		return data, err
	}, resilience.GracefulDegradation("chart-cache"))
	if err != nil {
		cacheLookups.WithLabelValues("redis", "error").Inc()
		logger.Debug("Chart cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	data, _ := result.([]byte)
	if len(data) == 0 {
		cacheLookups.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("redis", "hit").Inc()
	return data, true
}

func (c *Cache) storeRemote(ctx context.Context, key string, data []byte) {
	if c.remote == nil {
		return
	}

	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, c.remote.SetBytes(ctx, key, data, c.ttl)
	}, resilience.GracefulDegradation("chart-cache"))
	if err != nil {
		logger.Debug("Chart cache write failed", zap.String("key", key), zap.Error(err))
	}
}
