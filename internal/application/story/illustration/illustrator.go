// Package illustration 为章节与封面生成插图。
//
// 插图是尽力而为的旁路：任何失败都只记录日志并返回 nil，
// 不会向调用方返回错误，也不会中断生成流程。
package illustration

import (
	"context"
	"strings"
	"time"

	"z-ebook-api/internal/domain/entity"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/metrics"
)

// ImageResult 图片服务返回值
type ImageResult struct {
	URL           string
	RevisedPrompt string
}

// ImageGenerator 图片生成服务
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// Config 插图参数
type Config struct {
	Style   Style
	Mood    Mood
	Timeout time.Duration
	Clock   func() time.Time
}

type Illustrator struct {
	gen ImageGenerator
	cfg Config
}

// NewIllustrator gen 为 nil 时所有调用直接返回 nil
func NewIllustrator(gen ImageGenerator, cfg Config) *Illustrator {
	if cfg.Style == "" {
		cfg.Style = StyleChildren
	}
	if cfg.Mood == "" {
		cfg.Mood = MoodHappy
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Illustrator{gen: gen, cfg: cfg}
}

// Enabled 是否配置了图片服务
func (i *Illustrator) Enabled() bool {
	return i != nil && i.gen != nil
}

// ForChapter 生成章节插图，失败返回 nil
func (i *Illustrator) ForChapter(ctx context.Context, chapterNumber int, title, content string) *entity.GeneratedImage {
	if !i.Enabled() {
		return nil
	}
	prompt := ChapterPrompt(title, content, i.cfg.Style, i.cfg.Mood)
	res := i.generate(ctx, entity.ImageKindChapter, prompt, "chapter", chapterNumber)
	if res == nil {
		return nil
	}
	return &entity.GeneratedImage{
		Kind:          entity.ImageKindChapter,
		URL:           res.URL,
		Prompt:        prompt,
		ChapterNumber: chapterNumber,
		ChapterTitle:  title,
		RevisedPrompt: res.RevisedPrompt,
		GeneratedAt:   i.cfg.Clock(),
	}
}

// ForCover 生成封面，失败返回 nil
func (i *Illustrator) ForCover(ctx context.Context, title, description string) *entity.GeneratedImage {
	if !i.Enabled() {
		return nil
	}
	prompt := CoverPrompt(title, description, i.cfg.Style)
	res := i.generate(ctx, entity.ImageKindCover, prompt, "cover", 0)
	if res == nil {
		return nil
	}
	return &entity.GeneratedImage{
		Kind:          entity.ImageKindCover,
		URL:           res.URL,
		Prompt:        prompt,
		ChapterTitle:  title,
		RevisedPrompt: res.RevisedPrompt,
		GeneratedAt:   i.cfg.Clock(),
	}
}

func (i *Illustrator) generate(ctx context.Context, kind entity.ImageKind, prompt, target string, chapterNumber int) (res *ImageResult) {
	callCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "image generation panicked", apperrors.ErrImageGenerationFailed,
				"kind", kind, "chapter", chapterNumber, "panic", r)
			metrics.ImageGenerationTotal.WithLabelValues(string(kind), "failed").Inc()
			res = nil
		}
	}()

	out, err := i.gen.GenerateImage(callCtx, prompt)
	if err == nil && (out == nil || strings.TrimSpace(out.URL) == "") {
		err = apperrors.ErrImageGenerationFailed.WithDetail("empty image url")
	}
	if err != nil {
		logger.Warn(ctx, "image generation failed, continuing without image",
			"kind", kind,
			"target", target,
			"chapter", chapterNumber,
			"error", apperrors.Wrap(err, apperrors.CodeImageGenerationFailed, "image generation failed").Error(),
		)
		metrics.ImageGenerationTotal.WithLabelValues(string(kind), "failed").Inc()
		return nil
	}
	metrics.ImageGenerationTotal.WithLabelValues(string(kind), "success").Inc()
	return out
}
