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

type SummaryChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message]
	chainErr  error
}

func NewSummaryChain(factory workflowport.ChatModelFactory) *SummaryChain {
	return &SummaryChain{factory: factory}
}

func (c *SummaryChain) Invoke(ctx context.Context, in *wfmodel.SummaryGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ChapterContent) == "" {
		return nil, fmt.Errorf("chapter content is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

func (c *SummaryChain) getChain() (compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *SummaryChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.SummaryGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.SummaryGenerateInput) (*schema.Message, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			msgs, err := formatSummaryMessages(ctx, in)
			if err != nil {
				return nil, err
			}

			provider := strings.TrimSpace(in.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, "chapter_summary", provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}
			return generateStructured(ctx, chatModel, msgs, in.LLMParams, jsonObjectFormat())
		}),
		compose.WithNodeName("summary.llm"),
	)

	return chain.Compile(ctx)
}

func formatSummaryMessages(ctx context.Context, in *wfmodel.SummaryGenerateInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptChapterSummaryV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"chapter_number":           in.ChapterNumber,
		"chapter_title":            strings.TrimSpace(in.ChapterTitle),
		"chapter_content":          strings.TrimSpace(in.ChapterContent),
		"previous_summaries_block": buildPreviousSummariesBlock(in.PreviousSummaries),
	}
	return tpl.Format(ctx, vars)
}

func buildPreviousSummariesBlock(summaries []string) string {
	lines := make([]string, 0, len(summaries)+1)
	for i, s := range summaries {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Chapter %d: %s", i+1, s))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\nPrevious chapter summaries:\n" + strings.Join(lines, "\n") + "\n"
}
