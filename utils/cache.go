package utils

import (
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

// Get reads a cached value.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set writes a cached value.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, string(data), expiration).Err()
}

// Delete removes a cache entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeleteByPattern deletes cache entries by pattern.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

// CacheManager wraps the optional cache; a nil cache means every lookup misses.
type CacheManager struct {
	cache Cache
}

var globalCacheManager *CacheManager
var cacheManagerOnce sync.Once

// InitCacheManager initializes the cache manager from repo.Redis.
func InitCacheManager() {
	cacheManagerOnce.Do(func() {
		globalCacheManager = &CacheManager{}
		if repo.Redis != nil {
			globalCacheManager.cache = NewRedisCache(repo.Redis)
		}
	})
}

// SetCache replaces the backing cache, mainly for tests.
func SetCache(cache Cache) {
	InitCacheManager()
	globalCacheManager.cache = cache
}

// GetCacheManager returns the cache manager.
func GetCacheManager() *CacheManager {
	if globalCacheManager == nil {
		InitCacheManager()
	}
	return globalCacheManager
}

// BuildCacheKey builds a cache key.
func BuildCacheKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key += fmt.Sprintf(":%v", param)
	}
	return key
}

const (
	CacheKeyUserFileList = "user:file:list"

	FileListCacheTTL = 5 * time.Minute
)

type FileListCache struct {
	Files []model.FileRecord `json:"files"`
	Total int64              `json:"total"`
}

// GetUserFileListFromCache reads a cached page of a folder listing.
func GetUserFileListFromCache(ctx context.Context, userId, parentId uint64, page, pageSize int) (*FileListCache, bool) {
	manager := GetCacheManager()
	if manager.cache == nil {
		return nil, false
	}
	key := BuildCacheKey(CacheKeyUserFileList, userId, parentId, page, pageSize)

	var result FileListCache
	if err := manager.cache.Get(ctx, key, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// SetUserFileListToCache writes a cached page of a folder listing.
func SetUserFileListToCache(ctx context.Context, userId, parentId uint64, page, pageSize int, data *FileListCache) error {
	manager := GetCacheManager()
	if manager.cache == nil {
		return nil
	}
	key := BuildCacheKey(CacheKeyUserFileList, userId, parentId, page, pageSize)
	return manager.cache.Set(ctx, key, data, FileListCacheTTL)
}

// InvalidateUserFileListCache clears every cached listing of the owner.
// Cascades and restores touch several folders at once, so the whole owner is dropped.
func InvalidateUserFileListCache(ctx context.Context, userId uint64) error {
	manager := GetCacheManager()
	if manager.cache == nil {
		return nil
	}
	return manager.cache.DeleteByPattern(ctx, BuildCacheKey(CacheKeyUserFileList, userId)+":*")
}
