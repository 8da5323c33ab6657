// Package milvus 章节向量的 Milvus 存储
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-ebook-api/internal/config"
)

var tracer = otel.Tracer("milvus")

const dialTimeout = 10 * time.Second

// Client Milvus 连接与集合命名
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 连接 Milvus，user/password 均非空时启用鉴权
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	mc := client.Config{Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	if cfg.User != "" && cfg.Password != "" {
		mc.Username = cfg.User
		mc.Password = cfg.Password
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	c, err := client.NewClient(dialCtx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", mc.Address, err)
	}
	return &Client{milvus: c, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 以查询章节向量集合是否存在作为探测
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.CollectionName(CollectionChapterEmbeddings)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// CollectionName 附加 collection_prefix
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix == "" {
		return name
	}
	return c.config.CollectionPrefix + "_" + name
}

func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", c.CollectionName(name))))
	defer span.End()

	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// LoadCollection 加载集合到查询节点
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", c.CollectionName(name))))
	defer span.End()

	if err := c.milvus.LoadCollection(ctx, c.CollectionName(name), false); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
