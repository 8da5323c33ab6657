package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	llmctx "z-ebook-api/internal/domain/service"
	wfmodel "z-ebook-api/internal/workflow/model"
	workflowport "z-ebook-api/internal/workflow/port"
	workflowprompt "z-ebook-api/internal/workflow/prompt"
)

type ChapterChain struct {
	factory workflowport.ChatModelFactory
}

func NewChapterChain(factory workflowport.ChatModelFactory) *ChapterChain {
	return &ChapterChain{factory: factory}
}

func (c *ChapterChain) Invoke(ctx context.Context, in *wfmodel.ChapterGenerateInput) (*schema.Message, error) {
	if err := c.validate(in); err != nil {
		return nil, err
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "chapter_generate", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatChapterMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(in.LLMParams, nil)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

func (c *ChapterChain) validate(in *wfmodel.ChapterGenerateInput) error {
	if c == nil || c.factory == nil {
		return fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return fmt.Errorf("input is nil")
	}
	if in.ChapterNumber < 1 {
		return fmt.Errorf("chapter_number must be >= 1")
	}
	if strings.TrimSpace(in.ChapterTitle) == "" {
		return fmt.Errorf("chapter title is required")
	}
	if strings.TrimSpace(in.StoryContext) == "" {
		return fmt.Errorf("story context is required")
	}
	return nil
}

func formatChapterMessages(ctx context.Context, in *wfmodel.ChapterGenerateInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptChapterMemoryV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"story_context":  strings.TrimSpace(in.StoryContext),
		"chapter_number": in.ChapterNumber,
		"chapter_title":  strings.TrimSpace(in.ChapterTitle),
		"source_text":    strings.TrimSpace(in.SourceText),
		"story_format":   strings.TrimSpace(in.StoryFormat),
	}
	return tpl.Format(ctx, vars)
}
