// Package outline 在写任何章节之前生成整本书的大纲
package outline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"z-ebook-api/internal/domain/entity"
	workflowchain "z-ebook-api/internal/workflow/chain"
	wfmodel "z-ebook-api/internal/workflow/model"
	workflowport "z-ebook-api/internal/workflow/port"
	apperrors "z-ebook-api/pkg/errors"
)

const (
	DefaultFormat = "short-story"

	temperature = float32(0.7)
	maxTokens   = 4096
)

// PlanInput 大纲规划入参
type PlanInput struct {
	SourceText   string
	ChapterCount int
	Format       string
	ThemeHint    string

	Provider string
	Model    string
}

type Planner struct {
	chain *workflowchain.OutlineChain
}

func NewPlanner(factory workflowport.ChatModelFactory) *Planner {
	return &Planner{chain: workflowchain.NewOutlineChain(factory)}
}

// Plan 调用一次模型生成大纲。
// 模型调用失败返回 ErrGenerationUnavailable，输出不合法返回 ErrOutlineParse。
func (p *Planner) Plan(ctx context.Context, in PlanInput) (*entity.StoryOutline, *wfmodel.LLMUsageMeta, error) {
	if p == nil || p.chain == nil {
		return nil, nil, apperrors.ErrGenerationUnavailable.WithDetail("outline workflow not configured")
	}
	if in.ChapterCount < 1 {
		return nil, nil, apperrors.ErrInvalidParam.WithDetail("chapter count must be >= 1")
	}
	if strings.TrimSpace(in.SourceText) == "" {
		return nil, nil, apperrors.ErrInvalidParam.WithDetail("source text is required")
	}
	format := strings.TrimSpace(in.Format)
	if format == "" {
		format = DefaultFormat
	}

	t := temperature
	mt := maxTokens
	params := wfmodel.LLMParams{
		Provider:    in.Provider,
		Model:       in.Model,
		Temperature: &t,
		MaxTokens:   &mt,
	}
	outMsg, err := p.chain.Invoke(ctx, &wfmodel.OutlineGenerateInput{
		SourceText:   in.SourceText,
		ChapterCount: in.ChapterCount,
		StoryFormat:  format,
		Theme:        strings.TrimSpace(in.ThemeHint),
		LLMParams:    params,
	})
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeGenerationUnavailable, "outline generation failed")
	}

	outline, err := ParseOutline(outMsg.Content, in.ChapterCount)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeOutlineParseError, "outline response could not be parsed")
	}
	outline.ID = uuid.NewString()
	outline.StoryFormat = format
	outline.Theme = strings.TrimSpace(in.ThemeHint)

	meta := wfmodel.UsageFromMessage(params, outMsg)
	return outline, &meta, nil
}
