package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var cacheTracer = otel.Tracer("redis.cache")

// scanBatch 每轮 SCAN 的提示数量
const scanBatch = 200

// Cache JSON 值缓存，实现 memory.KVCache
type Cache struct {
	client *Client
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Get 未命中返回 nil, nil
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, nil
	case err != nil:
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, nil
}

// Set 以 JSON 编码写入
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	b, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	span.SetAttributes(attribute.Int("cache.bytes", len(b)))
	if err := c.client.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := cacheTracer.Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))))
	defer span.End()

	return c.client.rdb.Del(ctx, keys...).Err()
}

// InvalidateGeneration 删除某次生成的全部 mem:<id>:* 键
func (c *Cache) InvalidateGeneration(ctx context.Context, generationID string) error {
	pattern := fmt.Sprintf("mem:%s:*", generationID)
	ctx, span := cacheTracer.Start(ctx, "cache.InvalidateGeneration",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)))
	defer span.End()

	removed := 0
	iter := c.client.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.rdb.Unlink(ctx, batch...).Err(); err != nil {
				span.RecordError(err)
				return err
			}
			removed += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	if len(batch) > 0 {
		if err := c.client.rdb.Unlink(ctx, batch...).Err(); err != nil {
			span.RecordError(err)
			return err
		}
		removed += len(batch)
	}
	span.SetAttributes(attribute.Int("cache.invalidated_count", removed))
	return nil
}
