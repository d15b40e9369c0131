package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

//go:embed scripts/upsert_latest.lua
var upsertLatestScript string

// Client holds the latest-state index: one hash per (sku, seller_id)
// carrying the serialized state and its observed_at for the CAS guard.
// The index is a cache over the observation store and is rebuilt by
// replay, never treated as the system of record.
type Client struct {
	rdb          *redis.Client
	upsertScript *redis.Script
}

// NewClient creates a new Redis client with the CAS script loaded
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

	return &Client{
		rdb:          rdb,
		upsertScript: redis.NewScript(upsertLatestScript),
	}, nil
}

// Ping checks connectivity, for readiness probing.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func latestKey(sku, sellerID string) string {
	return fmt.Sprintf("latest:%s|%s", sku, sellerID)
}

// GetLatestState returns the indexed state for a (sku, seller) key, or
// nil when the key has never been seen.
func (c *Client) GetLatestState(ctx context.Context, sku, sellerID string) (*models.LatestState, error) {
	raw, err := c.rdb.HGet(ctx, latestKey(sku, sellerID), "state").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest-state lookup failed: %w", err)
	}

	var state models.LatestState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("corrupt latest-state entry for %s/%s: %w", sku, sellerID, err)
	}
	return &state, nil
}

// UpsertLatestState writes the state through the CAS script. It returns
// false when the index already holds a strictly newer state, in which
// case nothing is written.
func (c *Client) UpsertLatestState(ctx context.Context, state *models.LatestState) (bool, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("failed to marshal latest state: %w", err)
	}

	result, err := c.upsertScript.Run(ctx, c.rdb,
		[]string{latestKey(state.SKU, state.SellerID)},
		state.ObservedAt.UnixNano(), string(payload)).Result()
	if err != nil {
		return false, fmt.Errorf("latest-state upsert script failed: %w", err)
	}

	applied, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return applied == 1, nil
}

// SetStatsCache stores a serialized stats payload with a TTL.
func (c *Client) SetStatsCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("stats:%s", key), payload, ttl).Err()
}

// GetStatsCache returns a cached stats payload, or nil on a miss.
func (c *Client) GetStatsCache(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf("stats:%s", key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
