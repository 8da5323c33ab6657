// Package llm 提供基于 Eino 的 ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"z-ebook-api/internal/config"
	"z-ebook-api/pkg/logger"
)

// EinoFactory 按提供商名称惰性创建并复用 ChatModel
type EinoFactory struct {
	providers       map[string]config.ProviderConfig
	defaultProvider string

	mu     sync.RWMutex
	models map[string]model.BaseChatModel
	build  func(ctx context.Context, cfg *openai.ChatModelConfig) (model.BaseChatModel, error)
}

// NewEinoFactory 创建工厂；generation.provider / generation.model 覆盖默认值
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	name, resolved := cfg.ResolveProvider()
	providers := make(map[string]config.ProviderConfig, len(cfg.LLM.Providers))
	for k, v := range cfg.LLM.Providers {
		providers[k] = v
	}
	providers[name] = resolved

	return &EinoFactory{
		providers:       providers,
		defaultProvider: name,
		models:          make(map[string]model.BaseChatModel),
		build: func(ctx context.Context, c *openai.ChatModelConfig) (model.BaseChatModel, error) {
			return openai.NewChatModel(ctx, c)
		},
	}
}

// Get 获取指定提供商的 ChatModel，name 为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.defaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm provider %q is not configured", name)
	}

	m, err := f.build(ctx, chatModelConfig(p))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}
	logger.Info(ctx, "chat model created", "provider", name, "model", p.Model)
	f.models[name] = m
	return m, nil
}

// DefaultProvider 返回默认提供商名称
func (f *EinoFactory) DefaultProvider() string {
	return f.defaultProvider
}

// Providers 返回已配置的提供商名称
func (f *EinoFactory) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for k := range f.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// chatModelConfig 未配置的 max_tokens/temperature 交给各工作流的调用参数决定
func chatModelConfig(p config.ProviderConfig) *openai.ChatModelConfig {
	c := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		c.MaxTokens = &maxTokens
	}
	if p.Temperature > 0 {
		temp := float32(p.Temperature)
		c.Temperature = &temp
	}
	return c
}
