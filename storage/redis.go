package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"listing_scrooper/identity"
	"listing_scrooper/models"
)

// RedisCache remembers extraction results per listing URL. A miss marker
// records URLs that produced nothing so they are not hammered again
// before the negative TTL runs out.
type RedisCache struct {
	rdb         *redis.Client
	ttl         time.Duration
	negativeTTL time.Duration
}

func NewRedisCache(ctx context.Context, addr, password string, ttl, negativeTTL time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb, ttl: ttl, negativeTTL: negativeTTL}, nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func recordKey(url string) string {
	return "listing:record:" + identity.URLKey(url)
}

func missKey(url string) string {
	return "listing:miss:" + identity.URLKey(url)
}

// Get returns the cached record for url, or nil when there is none.
func (c *RedisCache) Get(ctx context.Context, url string) (*models.PropertyListingRecord, error) {
	raw, err := c.rdb.Get(ctx, recordKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec models.PropertyListingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}
	return &rec, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, rec *models.PropertyListingRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(url), data, c.ttl)
	pipe.Del(ctx, missKey(url))
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) SetMiss(ctx context.Context, url string) error {
	return c.rdb.Set(ctx, missKey(url), time.Now().Unix(), c.negativeTTL).Err()
}

func (c *RedisCache) IsMiss(ctx context.Context, url string) (bool, error) {
	n, err := c.rdb.Exists(ctx, missKey(url)).Result()
	return n == 1, err
}
