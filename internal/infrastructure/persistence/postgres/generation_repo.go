// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/domain/repository"
	apperrors "z-ebook-api/pkg/errors"
)

// GenerationRepository 电子书生成记录仓储实现
type GenerationRepository struct {
	client *Client
	tx     *TxManager
}

// NewGenerationRepository 创建生成记录仓储
func NewGenerationRepository(client *Client) *GenerationRepository {
	return &GenerationRepository{client: client, tx: NewTxManager(client)}
}

// CreatePlaceholder 创建占位记录
func (r *GenerationRepository) CreatePlaceholder(ctx context.Context, g *entity.EbookGeneration) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.CreatePlaceholder")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(newGenerationRow(g)).Error; err != nil {
		span.RecordError(err)
		return conflictOr(err, "failed to create generation %s", g.ID)
	}
	return nil
}

// GetByID 根据 ID 获取记录，不存在时返回 nil
func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*entity.EbookGeneration, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var row generationRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateOutlineMetadata 写入大纲派生的元数据。
// 新大纲之后的章节都以它为准，上一次运行留下的章节、插图、字数与错误信息一并清空。
func (r *GenerationRepository) UpdateOutlineMetadata(ctx context.Context, id, title, description string, chapterCount int) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.UpdateOutlineMetadata")
	defer span.End()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := r.lock(ctx, id)
		if err != nil {
			return err
		}
		row.Title = title
		row.Description = description
		row.ChapterCount = chapterCount
		row.Status = string(entity.GenerationStatusGenerating)
		row.Chapters = []entity.GeneratedChapter{}
		row.Images = []entity.GeneratedImage{}
		row.WordCount = 0
		row.CoverImageURL = ""
		row.ErrorMessage = ""
		row.CompletedAt = nil
		row.UpdatedAt = time.Now()
		return r.save(ctx, row, "title", "description", "chapter_count", "status", "chapters", "images",
			"word_count", "cover_image_url", "error_message", "completed_at", "updated_at")
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update outline metadata: %w", err)
	}
	return nil
}

// AppendChapter 行锁内写入章节，同一章节号再次写入时替换旧内容与插图
func (r *GenerationRepository) AppendChapter(ctx context.Context, id string, ch entity.GeneratedChapter, image *entity.GeneratedImage) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.AppendChapter")
	defer span.End()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := r.lock(ctx, id)
		if err != nil {
			return err
		}
		row.Chapters, row.Images = replaceChapter(row.Chapters, row.Images, ch, image)
		row.WordCount = 0
		for _, c := range row.Chapters {
			row.WordCount += c.WordCount
		}
		row.UpdatedAt = time.Now()
		return r.save(ctx, row, "chapters", "images", "word_count", "updated_at")
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append chapter %d: %w", ch.Number, err)
	}
	return nil
}

// SetCoverImage 设置封面并记入插图列表
func (r *GenerationRepository) SetCoverImage(ctx context.Context, id string, image entity.GeneratedImage) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.SetCoverImage")
	defer span.End()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		row, err := r.lock(ctx, id)
		if err != nil {
			return err
		}
		row.CoverImageURL = image.URL
		row.Images = append(row.Images, image)
		row.UpdatedAt = time.Now()
		return r.save(ctx, row, "cover_image_url", "images", "updated_at")
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cover image: %w", err)
	}
	return nil
}

// MarkCompleted 标记完成
func (r *GenerationRepository) MarkCompleted(ctx context.Context, id string, chapterCount, wordCount int) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.MarkCompleted")
	defer span.End()

	now := time.Now()
	return r.update(ctx, id, map[string]any{
		"status":        string(entity.GenerationStatusCompleted),
		"chapter_count": chapterCount,
		"word_count":    wordCount,
		"error_message": "",
		"completed_at":  now,
		"updated_at":    now,
	})
}

// MarkFailed 标记失败，已保存的章节保持不变
func (r *GenerationRepository) MarkFailed(ctx context.Context, id, message string) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.MarkFailed")
	defer span.End()

	return r.update(ctx, id, map[string]any{
		"status":        string(entity.GenerationStatusFailed),
		"error_message": message,
		"updated_at":    time.Now(),
	})
}

// ListByUser 获取用户的生成记录，按创建时间倒序
func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.EbookGeneration], error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&generationRow{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}

	var rows []*generationRow
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	items := make([]*entity.EbookGeneration, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

// replaceChapter 按章节号写入章节，保持章节号升序；该章旧插图随之替换
func replaceChapter(chapters []entity.GeneratedChapter, images []entity.GeneratedImage, ch entity.GeneratedChapter, image *entity.GeneratedImage) ([]entity.GeneratedChapter, []entity.GeneratedImage) {
	outChapters := make([]entity.GeneratedChapter, 0, len(chapters)+1)
	for _, c := range chapters {
		if c.Number != ch.Number {
			outChapters = append(outChapters, c)
		}
	}
	outChapters = append(outChapters, ch)
	sort.SliceStable(outChapters, func(i, j int) bool { return outChapters[i].Number < outChapters[j].Number })

	outImages := make([]entity.GeneratedImage, 0, len(images)+1)
	for _, img := range images {
		if img.Kind == entity.ImageKindChapter && img.ChapterNumber == ch.Number {
			continue
		}
		outImages = append(outImages, img)
	}
	if image != nil {
		outImages = append(outImages, *image)
	}
	return outChapters, outImages
}

func (r *GenerationRepository) lock(ctx context.Context, id string) (*generationRow, error) {
	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var row generationRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGenerationNotFound.WithDetail(id)
		}
		return nil, err
	}
	return &row, nil
}

// save 按结构体写回指定列，jsonb 列经 serializer 编码
func (r *GenerationRepository) save(ctx context.Context, row *generationRow, columns ...string) error {
	return getDB(ctx, r.client.db).Model(row).Select(columns).Updates(row).Error
}

func (r *GenerationRepository) update(ctx context.Context, id string, values map[string]any) error {
	res := getDB(ctx, r.client.db).Model(&generationRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update generation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrGenerationNotFound.WithDetail(id)
	}
	return nil
}
