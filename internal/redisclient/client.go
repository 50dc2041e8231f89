package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func catalogKey(restaurantID, productID int64) string {
	return fmt.Sprintf("catalog:%d:%d", restaurantID, productID)
}

// GetCatalogMapping retrieves a cached product→restaurant-product mapping.
// The second return value reports whether the mapping was cached.
func (c *Client) GetCatalogMapping(ctx context.Context, restaurantID, productID int64) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, catalogKey(restaurantID, productID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt catalog cache entry: %w", err)
	}
	return id, true, nil
}

// SetCatalogMappings caches a batch of product→restaurant-product mappings
func (c *Client) SetCatalogMappings(ctx context.Context, restaurantID int64, mappings map[int64]int64, ttl time.Duration) error {
	if len(mappings) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for productID, restaurantProductID := range mappings {
		pipe.Set(ctx, catalogKey(restaurantID, productID),
			strconv.FormatInt(restaurantProductID, 10), ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GetJSON retrieves a cached JSON value into dest. The return value reports
// whether the key was present.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return true, nil
}

// SetJSON caches a JSON-encoded value with TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Invalidate removes cached keys
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// AcquireLock acquires a best-effort lock for the given scope
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
