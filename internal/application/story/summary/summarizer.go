// Package summary 将新生成的章节压缩为摘要、关键事件与角色变化
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"z-ebook-api/internal/application/story/memory"
	"z-ebook-api/internal/domain/entity"
	workflowchain "z-ebook-api/internal/workflow/chain"
	wfmodel "z-ebook-api/internal/workflow/model"
	"z-ebook-api/internal/workflow/node"
	workflowport "z-ebook-api/internal/workflow/port"
	apperrors "z-ebook-api/pkg/errors"
)

const (
	temperature = float32(0.3)
	maxTokens   = 1024
)

type Input struct {
	Title          string
	Content        string
	ChapterNumber  int
	PriorSummaries []string

	Provider string
	Model    string
}

type Summarizer struct {
	chain *workflowchain.SummaryChain
}

func NewSummarizer(factory workflowport.ChatModelFactory) *Summarizer {
	return &Summarizer{chain: workflowchain.NewSummaryChain(factory)}
}

// Summarize 任何失败都返回 ErrSummarizationFailed
func (s *Summarizer) Summarize(ctx context.Context, in Input) (*memory.ChapterOutcome, *wfmodel.LLMUsageMeta, error) {
	if s == nil || s.chain == nil {
		return nil, nil, apperrors.ErrSummarizationFailed.WithDetail("summary workflow not configured")
	}

	t := temperature
	mt := maxTokens
	params := wfmodel.LLMParams{
		Provider:    in.Provider,
		Model:       in.Model,
		Temperature: &t,
		MaxTokens:   &mt,
	}
	outMsg, err := s.chain.Invoke(ctx, &wfmodel.SummaryGenerateInput{
		ChapterNumber:     in.ChapterNumber,
		ChapterTitle:      in.Title,
		ChapterContent:    in.Content,
		PreviousSummaries: in.PriorSummaries,
		LLMParams:         params,
	})
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, apperrors.CodeSummarizationFailed, "chapter %d summarization failed", in.ChapterNumber)
	}

	outcome, err := ParseOutcome(outMsg.Content)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, apperrors.CodeSummarizationFailed, "chapter %d summary could not be parsed", in.ChapterNumber)
	}
	meta := wfmodel.UsageFromMessage(params, outMsg)
	return outcome, &meta, nil
}

// ParseOutcome 解析摘要 JSON；summary 为空视为失败
func ParseOutcome(rawText string) (*memory.ChapterOutcome, error) {
	jsonText := node.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("empty summary output")
	}

	var out memory.ChapterOutcome
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, fmt.Errorf("failed to parse summary json: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Summary == "" {
		return nil, fmt.Errorf("summary is empty")
	}

	events := make([]string, 0, len(out.KeyEvents))
	for _, ev := range out.KeyEvents {
		if ev = strings.TrimSpace(ev); ev != "" {
			events = append(events, ev)
		}
	}
	out.KeyEvents = events

	devs := make([]entity.CharacterDevelopment, 0, len(out.CharacterDevelopments))
	for _, d := range out.CharacterDevelopments {
		d.Character = strings.TrimSpace(d.Character)
		if d.Character == "" {
			continue
		}
		devs = append(devs, d)
	}
	out.CharacterDevelopments = devs
	return &out, nil
}
