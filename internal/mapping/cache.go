package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// SpecLoader 映射规格的后端加载器（通常由 repository 实现）
type SpecLoader interface {
	GetByProfile(ctx context.Context, profileID string) (*models.MappingSpecification, error)
}

// Cache 映射规格的读穿缓存
// 每条消息取到的是一份独立反序列化的快照, 编辑器保存新版本后
// 通过 Invalidate 失效, 处理中的消息继续使用旧快照
type Cache struct {
	kv     KVStore
	loader SpecLoader
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache 创建映射规格缓存
func NewCache(kv KVStore, loader SpecLoader, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		kv:     kv,
		loader: loader,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(profileID string) string {
	return fmt.Sprintf("mapping:spec:%s", profileID)
}

// Get 返回档案的映射规格快照, 缓存未命中时回源并写回
func (c *Cache) Get(ctx context.Context, profileID string) (*models.MappingSpecification, error) {
	key := cacheKey(profileID)

	cached, err := c.kv.Get(ctx, key)
	if err == nil {
		var spec models.MappingSpecification
		if err := json.Unmarshal([]byte(cached), &spec); err == nil {
			return &spec, nil
		}
		// 缓存内容损坏, 当作未命中回源
		c.logger.Warn("Corrupt mapping spec in cache, falling back to store",
			zap.String("profile_id", profileID),
		)
	} else if err != ErrCacheMiss {
		return nil, fmt.Errorf("failed to read mapping cache: %w", err)
	}

	spec, err := c.loader.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping spec: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		// 写回失败只降级为每次回源, 不影响读取
		c.logger.Warn("Failed to populate mapping cache",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
	}

	return spec, nil
}

// Invalidate 使档案的缓存条目失效（编辑器保存后调用）
func (c *Cache) Invalidate(ctx context.Context, profileID string) error {
	return c.kv.Del(ctx, cacheKey(profileID))
}
