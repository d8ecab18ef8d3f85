package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"mapping-viewer/internal/common/database"
	"mapping-viewer/internal/models"
)

// ErrCacheMiss is returned by Cache.Get when nothing is stored under the key.
var ErrCacheMiss = database.ErrCacheMiss

// Cache stores fetched campaigns between runs.
type Cache interface {
	Get(ctx context.Context, key string) (*models.Campaign, error)
	Set(ctx context.Context, key string, c *models.Campaign) error
	Delete(ctx context.Context, key string) error
}

// RedisCache keeps the campaign as JSON in Redis.
type RedisCache struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisCache(client *database.RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*models.Campaign, error) {
	data, err := r.client.GetBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	var c models.Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cached campaign: %w", err)
	}
	return &c, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, c *models.Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode campaign: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl)
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}

// MemoryCache keeps the campaign in process.
type MemoryCache struct {
	cache *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{cache: cache.New(ttl, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*models.Campaign, error) {
	if x, found := m.cache.Get(key); found {
		if c, ok := x.(*models.Campaign); ok {
			return c, nil
		}
	}
	return nil, ErrCacheMiss
}

func (m *MemoryCache) Set(_ context.Context, key string, c *models.Campaign) error {
	m.cache.Set(key, c, cache.DefaultExpiration)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func isMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
