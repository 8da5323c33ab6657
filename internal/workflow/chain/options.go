package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	wfmodel "z-ebook-api/internal/workflow/model"
	wfnode "z-ebook-api/internal/workflow/node"
	workflowprompt "z-ebook-api/internal/workflow/prompt"
	"z-ebook-api/pkg/logger"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

func buildModelOptions(p wfmodel.LLMParams, responseFormat map[string]any) []model.Option {
	opts := make([]model.Option, 0, 4)
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(*p.Temperature))
	}
	if p.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxTokens))
	}
	if m := strings.TrimSpace(p.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if responseFormat != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": responseFormat,
		}))
	}
	return opts
}

// generateStructured 请求结构化输出，提供商不支持 response_format 时退回纯提示词
func generateStructured(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message, p wfmodel.LLMParams, responseFormat map[string]any) (*schema.Message, error) {
	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(p, responseFormat)...)
	if err != nil && responseFormat != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm response_format not supported, fallback to prompt-only",
			"provider", strings.TrimSpace(p.Provider),
			"model", strings.TrimSpace(p.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildModelOptions(p, nil)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

func jsonObjectFormat() map[string]any {
	return map[string]any{"type": "json_object"}
}

func jsonSchemaFormat(name string, s map[string]any) map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   name,
			"strict": false,
			"schema": s,
		},
	}
}
