package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_key.lua
var claimKeyScript string

//go:embed scripts/mirror_stock.lua
var mirrorStockScript string

const (
	idempotencyTTL = 24 * time.Hour
	stockMirrorTTL = time.Hour
)

// Client wraps Redis for idempotency keys and the best-effort stock
// mirror. The database remains the authority for quantities; the mirror
// only feeds dashboards and the low-stock worker.
type Client struct {
	rdb          *redis.Client
	claimScript  *redis.Script
	mirrorScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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
		claimScript:  redis.NewScript(claimKeyScript),
		mirrorScript: redis.NewScript(mirrorStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ClaimIdempotencyKey atomically claims an idempotency key. When the key
// is already held it returns claimed=false together with the value stored
// by the first claimer (the order ID of the original request).
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key, value string) (claimed bool, existing string, err error) {
	result, err := c.claimScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("idempotency:%s", key)},
		value, int(idempotencyTTL.Seconds())).Result()
	if err != nil {
		return false, "", fmt.Errorf("claim key script failed: %w", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) == 0 {
		return false, "", fmt.Errorf("unexpected script result type")
	}
	if code, _ := reply[0].(int64); code == 1 {
		return true, "", nil
	}
	if len(reply) > 1 {
		existing, _ = reply[1].(string)
	}
	return false, existing, nil
}

// StoreIdempotencyResult replaces the value behind a claimed key once the
// outcome is known, keeping the original TTL.
func (c *Client) StoreIdempotencyResult(ctx context.Context, key, value string) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, redis.KeepTTL).Err()
}

// ReleaseIdempotencyKey drops a claimed key so a failed request can be
// retried with the same key.
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// MirrorStock records the remaining quantity for a product and reports
// whether it sits at or below the low-stock threshold.
func (c *Client) MirrorStock(ctx context.Context, productID int64, remaining, threshold int) (low bool, err error) {
	result, err := c.mirrorScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("stock:%d", productID)},
		remaining, int(stockMirrorTTL.Seconds()), threshold).Result()
	if err != nil {
		return false, fmt.Errorf("mirror stock script failed: %w", err)
	}

	flag, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return flag == 1, nil
}

// GetMirroredStock reads the mirrored quantity for a product. Returns
// found=false when the mirror has expired or was never written.
func (c *Client) GetMirroredStock(ctx context.Context, productID int64) (remaining int, found bool, err error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("stock:%d", productID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock mirror for product %d: %w", productID, err)
	}
	return n, true, nil
}

// MarkLowStockAlerted records that a low-stock alert fired for a product
// so the worker does not repeat it within the TTL window. Returns true
// when this call won the mark.
func (c *Client) MarkLowStockAlerted(ctx context.Context, productID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lowstock:alerted:%d", productID), "1", ttl).Result()
}
