// Package redis caches the latest technical snapshot per symbol and fans
// updates out over PubSub for the WebSocket gateway. All calls run through
// a circuit breaker so a flapping Redis degrades the cache instead of the
// refresh path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stockpulse/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultMaxFailures = 5
	defaultCooldown    = 10 * time.Second
)

// Config configures the snapshot cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// OnBreakerChange is called with the new breaker state (for metrics).
	OnBreakerChange func(state int)
}

// Cache is the Redis-backed latest-snapshot cache.
type Cache struct {
	client *goredis.Client
	brk    *breaker
}

// Client returns the underlying Redis client for health checks and PubSub.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates a Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{
		client: client,
		brk:    newBreaker(defaultMaxFailures, defaultCooldown, cfg.OnBreakerChange),
	}, nil
}

// latestKey returns the cache key for a symbol: "technicals:latest:{symbol}".
func latestKey(symbol string) string {
	return "technicals:latest:" + symbol
}

// SetLatest stores the snapshot under the symbol's latest key and publishes
// it to the symbol's PubSub channel, in one pipeline.
func (c *Cache) SetLatest(ctx context.Context, snap *model.Snapshot, ttl time.Duration) error {
	data := snap.JSON()
	return c.brk.do(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, latestKey(snap.Symbol), data, ttl)
		pipe.Publish(ctx, snap.PubSubChannel(), data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// GetLatest reads the cached snapshot for a symbol. Returns (nil, nil) on a
// cache miss so callers can fall through to SQLite.
func (c *Cache) GetLatest(ctx context.Context, symbol string) (*model.Snapshot, error) {
	var data string
	err := c.brk.do(func() error {
		var innerErr error
		data, innerErr = c.client.Get(ctx, latestKey(symbol)).Result()
		if innerErr == goredis.Nil {
			data = ""
			return nil
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	return &snap, nil
}

// BreakerState reports the circuit breaker state for health endpoints.
func (c *Cache) BreakerState() int {
	return c.brk.currentState()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
