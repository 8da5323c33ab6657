package repository

import (
	"context"

	"z-ebook-api/internal/domain/entity"
)

// GenerationRepository 电子书生成记录仓储
//
// 写入分阶段进行：占位创建 -> 大纲元数据 -> 逐章追加 -> 终态。
// 每个阶段可安全重放。
type GenerationRepository interface {
	// CreatePlaceholder 创建占位记录（异步任务入队时为 draft），记录已存在时返回 errors.ErrPersistenceConflict
	CreatePlaceholder(ctx context.Context, g *entity.EbookGeneration) error
	GetByID(ctx context.Context, id string) (*entity.EbookGeneration, error)
	// UpdateOutlineMetadata 写入大纲派生的标题、简介与章节数，状态置为 generating；
	// 同时清空上一次运行留下的章节、插图、字数、封面与错误信息
	UpdateOutlineMetadata(ctx context.Context, id, title, description string, chapterCount int) error
	// AppendChapter 写入章节与可选插图并刷新字数，同一章节号再次写入时替换
	AppendChapter(ctx context.Context, id string, chapter entity.GeneratedChapter, image *entity.GeneratedImage) error
	// SetCoverImage 设置封面
	SetCoverImage(ctx context.Context, id string, image entity.GeneratedImage) error
	// MarkCompleted 置为 completed 并清空错误信息
	MarkCompleted(ctx context.Context, id string, chapterCount, wordCount int) error
	MarkFailed(ctx context.Context, id string, message string) error
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.EbookGeneration], error)
}

// OutlineRepository 大纲仓储
type OutlineRepository interface {
	// Save 保存大纲，同一生成记录重复保存时覆盖
	Save(ctx context.Context, outline *entity.StoryOutline) error
	GetByGeneration(ctx context.Context, generationID string) (*entity.StoryOutline, error)
}

// StoryStateRepository 故事状态仓储，每本书一行
type StoryStateRepository interface {
	Upsert(ctx context.Context, state *entity.StoryState) error
	GetByGeneration(ctx context.Context, generationID string) (*entity.StoryState, error)
}

// ChapterSummaryRepository 章节摘要仓储
type ChapterSummaryRepository interface {
	// Save 保存摘要，同一章节重复保存时覆盖
	Save(ctx context.Context, summary *entity.ChapterSummary) error
	DeleteByGeneration(ctx context.Context, generationID string) error
	// ListByGeneration 按章节号升序返回
	ListByGeneration(ctx context.Context, generationID string) ([]*entity.ChapterSummary, error)
}

// ChapterEmbeddingRepository 章节向量仓储
type ChapterEmbeddingRepository interface {
	Save(ctx context.Context, embedding *entity.ChapterEmbedding) error
	// ListBefore 返回章节号严格小于 chapterNumber 的向量，按章节号升序
	ListBefore(ctx context.Context, generationID string, chapterNumber int) ([]*entity.ChapterEmbedding, error)
}
