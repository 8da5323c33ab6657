package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-ebook-api/internal/domain/entity"
)

// OutlineRepository 大纲仓储实现
type OutlineRepository struct {
	client *Client
}

func NewOutlineRepository(client *Client) *OutlineRepository {
	return &OutlineRepository{client: client}
}

// Save 按 generation_id 覆盖保存
func (r *OutlineRepository) Save(ctx context.Context, outline *entity.StoryOutline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}},
		UpdateAll: true,
	})
	if err := db.Create(newOutlineRow(outline)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save outline: %w", err)
	}
	return nil
}

func (r *OutlineRepository) GetByGeneration(ctx context.Context, generationID string) (*entity.StoryOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.GetByGeneration")
	defer span.End()

	var row outlineRow
	if err := getDB(ctx, r.client.db).First(&row, "generation_id = ?", generationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get outline: %w", err)
	}
	return row.toEntity(), nil
}

// StoryStateRepository 故事状态仓储实现
type StoryStateRepository struct {
	client *Client
}

func NewStoryStateRepository(client *Client) *StoryStateRepository {
	return &StoryStateRepository{client: client}
}

// Upsert 每本书保留一行最新状态
func (r *StoryStateRepository) Upsert(ctx context.Context, state *entity.StoryState) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryStateRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}},
		UpdateAll: true,
	})
	if err := db.Create(newStoryStateRow(state)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert story state: %w", err)
	}
	return nil
}

func (r *StoryStateRepository) GetByGeneration(ctx context.Context, generationID string) (*entity.StoryState, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryStateRepository.GetByGeneration")
	defer span.End()

	var row storyStateRow
	if err := getDB(ctx, r.client.db).First(&row, "generation_id = ?", generationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story state: %w", err)
	}
	return row.toEntity(), nil
}

// ChapterSummaryRepository 章节摘要仓储实现
type ChapterSummaryRepository struct {
	client *Client
}

func NewChapterSummaryRepository(client *Client) *ChapterSummaryRepository {
	return &ChapterSummaryRepository{client: client}
}

// Save 同一章节再次保存时覆盖
func (r *ChapterSummaryRepository) Save(ctx context.Context, summary *entity.ChapterSummary) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterSummaryRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}, {Name: "chapter_number"}},
		UpdateAll: true,
	})
	if err := db.Create(newChapterSummaryRow(summary)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save chapter %d summary: %w", summary.ChapterNumber, err)
	}
	return nil
}

// DeleteByGeneration 重新规划大纲前清除旧摘要
func (r *ChapterSummaryRepository) DeleteByGeneration(ctx context.Context, generationID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterSummaryRepository.DeleteByGeneration")
	defer span.End()

	if err := getDB(ctx, r.client.db).
		Where("generation_id = ?", generationID).
		Delete(&chapterSummaryRow{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapter summaries: %w", err)
	}
	return nil
}

func (r *ChapterSummaryRepository) ListByGeneration(ctx context.Context, generationID string) ([]*entity.ChapterSummary, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterSummaryRepository.ListByGeneration")
	defer span.End()

	var rows []*chapterSummaryRow
	if err := getDB(ctx, r.client.db).
		Where("generation_id = ?", generationID).
		Order("chapter_number ASC").
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter summaries: %w", err)
	}
	out := make([]*entity.ChapterSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// ChapterEmbeddingRepository 章节向量的 PostgreSQL 实现，向量以 real[] 保存，相似度在应用层计算
type ChapterEmbeddingRepository struct {
	client *Client
}

func NewChapterEmbeddingRepository(client *Client) *ChapterEmbeddingRepository {
	return &ChapterEmbeddingRepository{client: client}
}

func (r *ChapterEmbeddingRepository) Save(ctx context.Context, embedding *entity.ChapterEmbedding) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEmbeddingRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}, {Name: "chapter_number"}},
		UpdateAll: true,
	})
	if err := db.Create(newChapterEmbeddingRow(embedding)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save chapter %d embedding: %w", embedding.ChapterNumber, err)
	}
	return nil
}

func (r *ChapterEmbeddingRepository) ListBefore(ctx context.Context, generationID string, chapterNumber int) ([]*entity.ChapterEmbedding, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEmbeddingRepository.ListBefore")
	defer span.End()

	var rows []*chapterEmbeddingRow
	if err := getDB(ctx, r.client.db).
		Where("generation_id = ? AND chapter_number < ?", generationID, chapterNumber).
		Order("chapter_number ASC").
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter embeddings: %w", err)
	}
	out := make([]*entity.ChapterEmbedding, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
