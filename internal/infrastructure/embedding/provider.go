package embedding

import (
	"context"
	"strings"

	"z-ebook-api/internal/application/story/repetition"
	"z-ebook-api/internal/config"
	"z-ebook-api/pkg/logger"
)

// NewChapterEmbedder 按配置选择向量化实现。
// 远端提供商初始化失败时回退到本地哈希向量化，重复检测不因此停用。
func NewChapterEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) repetition.Embedder {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		inner, err := NewEinoEmbedder(ctx, cfg)
		if err == nil {
			return NewEinoAdapter(inner)
		}
		logger.Warn(ctx, "openai embedder unavailable, falling back to hashing", "error", err.Error())
	case "http":
		if strings.TrimSpace(cfg.Endpoint) != "" {
			return NewClient(cfg)
		}
		logger.Warn(ctx, "embedding endpoint is empty, falling back to hashing")
	}
	return repetition.NewHashingEmbedder(cfg.Dimension)
}
