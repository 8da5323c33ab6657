package model

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// LLMUsageMeta 一次 LLM 调用的可观测信息
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	GeneratedAt      time.Time
}

// LLMParams 各工作流共享的模型参数
type LLMParams struct {
	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// UsageFromMessage 从模型输出的 ResponseMeta 中提取用量
func UsageFromMessage(p LLMParams, msg *schema.Message) LLMUsageMeta {
	meta := LLMUsageMeta{
		Provider:    strings.TrimSpace(p.Provider),
		Model:       strings.TrimSpace(p.Model),
		GeneratedAt: time.Now().UTC(),
	}
	if p.Temperature != nil {
		meta.Temperature = float64(*p.Temperature)
	}
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}
