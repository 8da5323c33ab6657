// Package image 提供 OpenAI 兼容的图片生成客户端
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"z-ebook-api/internal/application/story/illustration"
	"z-ebook-api/internal/config"
	"z-ebook-api/pkg/logger"
)

// Client 调用 /images/generations，按配置限速
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	quality    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient 未启用或缺少 api key 时返回 nil
func NewClient(cfg *config.ImageConfig) *Client {
	if cfg == nil || !cfg.Enabled || strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		size:       cfg.Size,
		quality:    cfg.Quality,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
	}
}

// GenerateImage 实现 illustration.ImageGenerator
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*illustration.ImageResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("image rate limiter: %w", err)
	}

	body, err := json.Marshal(&generateRequest{
		Model:          c.model,
		Prompt:         prompt,
		N:              1,
		Size:           c.size,
		Quality:        c.quality,
		ResponseFormat: "url",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode image response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("image api error (status=%d, type=%s): %s", resp.StatusCode, out.Error.Type, out.Error.Message)
		}
		return nil, fmt.Errorf("image api error: status=%d", resp.StatusCode)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, fmt.Errorf("image api returned no image")
	}

	logger.Debug(ctx, "image generated", "model", c.model, "duration_ms", time.Since(started).Milliseconds())
	return &illustration.ImageResult{URL: out.Data[0].URL, RevisedPrompt: out.Data[0].RevisedPrompt}, nil
}
