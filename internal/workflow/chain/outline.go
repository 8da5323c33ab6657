package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "z-ebook-api/internal/domain/service"
	wfmodel "z-ebook-api/internal/workflow/model"
	workflowport "z-ebook-api/internal/workflow/port"
	workflowprompt "z-ebook-api/internal/workflow/prompt"
)

type OutlineChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.OutlineGenerateInput, *schema.Message]
	chainErr  error
}

func NewOutlineChain(factory workflowport.ChatModelFactory) *OutlineChain {
	return &OutlineChain{factory: factory}
}

func (c *OutlineChain) Invoke(ctx context.Context, in *wfmodel.OutlineGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.SourceText) == "" {
		return nil, fmt.Errorf("source text is required")
	}
	if in.ChapterCount < 1 {
		return nil, fmt.Errorf("chapter_count must be >= 1")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type outlineChainState struct {
	In       *wfmodel.OutlineGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *OutlineChain) getChain() (compose.Runnable[*wfmodel.OutlineGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *OutlineChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.OutlineGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.OutlineGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.OutlineGenerateInput) (*outlineChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			msgs, err := formatOutlineMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &outlineChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("outline.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *outlineChainState) (*outlineChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "outline_plan", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}
			outMsg, err := generateStructured(ctx, chatModel, st.Messages, st.In.LLMParams,
				jsonSchemaFormat("story_outline", outlineJSONSchema()))
			if err != nil {
				return nil, err
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("outline.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *outlineChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("outline.finalize"),
	)

	return chain.Compile(ctx)
}

func formatOutlineMessages(ctx context.Context, in *wfmodel.OutlineGenerateInput) ([]*schema.Message, error) {
	id := workflowprompt.PromptOutlinePlanV1
	theme := strings.TrimSpace(in.Theme)
	if theme != "" {
		id = workflowprompt.PromptOutlinePlanThemedV1
	}
	tpl, err := defaultPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"source_text":   strings.TrimSpace(in.SourceText),
		"chapter_count": in.ChapterCount,
		"story_format":  strings.TrimSpace(in.StoryFormat),
		"theme":         theme,
	}
	return tpl.Format(ctx, vars)
}

func outlineJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	return map[string]any{
		"type":     "object",
		"required": []any{"book_title", "book_description", "chapter_titles", "chapter_summaries", "character_bios", "plot_outline"},
		"properties": map[string]any{
			"book_title":        str,
			"book_description":  str,
			"chapter_titles":    strList,
			"chapter_summaries": strList,
			"character_bios": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name"},
					"properties": map[string]any{
						"name":          str,
						"description":   str,
						"personality":   str,
						"goals":         str,
						"relationships": map[string]any{"type": "object", "additionalProperties": str},
					},
				},
			},
			"world_info":   map[string]any{"type": "object", "additionalProperties": str},
			"key_themes":   strList,
			"plot_outline": str,
		},
	}
}
