// Package embedding 章节正文向量化
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-ebook-api/internal/config"
)

var tracer = otel.Tracer("embedding")

const (
	defaultBatchSize = 32
	defaultModel     = "BAAI/bge-m3"
	defaultTimeout   = 30 * time.Second
	errBodyLimit     = 512
)

var errEmptyEndpoint = errors.New("embedding endpoint is empty")

// Client 调用自建 embedding 服务（POST {texts, model} -> {embeddings}）
type Client struct {
	url       string
	urlErr    error
	model     string
	batchSize int
	http      *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	TokensUsed int         `json:"tokens_used"`
}

func NewClient(cfg *config.EmbeddingConfig) *Client {
	c := &Client{
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = defaultTimeout
	}
	c.url, c.urlErr = resolveEndpoint(cfg.Endpoint)
	return c
}

// resolveEndpoint 未带路径时补 /embed
func resolveEndpoint(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", errEmptyEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid embedding endpoint %q: %w", raw, err)
	}
	if u.Path == "" {
		u.Path = "/embed"
	}
	return u.String(), nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedding service returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch 按 batch_size 切分，结果与输入一一对应
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.urlErr != nil {
		return nil, c.urlErr
	}

	ctx, span := tracer.Start(ctx, "embedding.EmbedBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("embedding.texts", len(texts)),
		attribute.String("embedding.model", c.model),
	)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		chunk := texts[start:min(start+c.batchSize, len(texts))]
		vecs, err := c.post(ctx, chunk)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(decoded.Embeddings), len(texts))
	}
	return decoded.Embeddings, nil
}
