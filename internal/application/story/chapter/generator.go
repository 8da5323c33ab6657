// Package chapter 基于故事上下文生成单章正文
package chapter

import (
	"context"
	"strings"

	"z-ebook-api/internal/application/story/memory"
	workflowchain "z-ebook-api/internal/workflow/chain"
	wfmodel "z-ebook-api/internal/workflow/model"
	workflowport "z-ebook-api/internal/workflow/port"
	apperrors "z-ebook-api/pkg/errors"
)

const (
	temperature = float32(0.7)
	maxTokens   = 2000
)

// Input 单章生成入参，Context 由 memory.BuildContext 产出
type Input struct {
	ChapterNumber int
	ChapterTitle  string
	Context       string
	SourceText    string
	Format        string

	Provider string
	Model    string
}

type Output struct {
	Title     string
	Content   string
	WordCount int
}

type Generator struct {
	chain *workflowchain.ChapterChain
}

func NewGenerator(factory workflowport.ChatModelFactory) *Generator {
	return &Generator{chain: workflowchain.NewChapterChain(factory)}
}

// Generate 一次模型调用生成一章；调用失败或正文为空返回 ErrChapterGenerationFailed
func (g *Generator) Generate(ctx context.Context, in Input) (*Output, *wfmodel.LLMUsageMeta, error) {
	if g == nil || g.chain == nil {
		return nil, nil, apperrors.ErrChapterGenerationFailed.WithDetail("chapter workflow not configured")
	}

	wfIn := toWorkflowInput(in)
	outMsg, err := g.chain.Invoke(ctx, wfIn)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, apperrors.CodeChapterGenerationFailed, "chapter %d generation failed", in.ChapterNumber)
	}

	content := strings.TrimSpace(outMsg.Content)
	if content == "" {
		return nil, nil, apperrors.ErrChapterGenerationFailed.WithDetail("empty chapter content")
	}

	meta := wfmodel.UsageFromMessage(wfIn.LLMParams, outMsg)
	return &Output{
		Title:     strings.TrimSpace(in.ChapterTitle),
		Content:   content,
		WordCount: memory.WordCount(content),
	}, &meta, nil
}

func toWorkflowInput(in Input) *wfmodel.ChapterGenerateInput {
	t := temperature
	mt := maxTokens
	return &wfmodel.ChapterGenerateInput{
		ChapterNumber: in.ChapterNumber,
		ChapterTitle:  in.ChapterTitle,
		StoryContext:  in.Context,
		SourceText:    in.SourceText,
		StoryFormat:   in.Format,
		LLMParams: wfmodel.LLMParams{
			Provider:    in.Provider,
			Model:       in.Model,
			Temperature: &t,
			MaxTokens:   &mt,
		},
	}
}
