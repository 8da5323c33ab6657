package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"z-ebook-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino OpenAI 适配器的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	ecfg := &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Dimension > 0 {
		dim := cfg.Dimension
		ecfg.Dimensions = &dim
	}
	embedder, err := openai.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}
	return embedder, nil
}

// EinoAdapter 把 Eino Embedder 适配为单文本 float32 向量
type EinoAdapter struct {
	inner embedding.Embedder
}

func NewEinoAdapter(inner embedding.Embedder) *EinoAdapter {
	return &EinoAdapter{inner: inner}
}

// Embed 向量化单章正文
func (a *EinoAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.inner.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return out, nil
}
