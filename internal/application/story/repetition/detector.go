// Package repetition 通过章节向量的余弦相似度发现重复内容
package repetition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/domain/repository"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/metrics"
)

// DefaultThreshold 默认相似度阈值
const DefaultThreshold = 0.85

// Embedder 文本向量化服务
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result 重复检测结果
type Result struct {
	IsRepetitive    bool      `json:"isRepetitive"`
	SimilarChapters []int     `json:"similarChapters"`
	MaxSimilarity   float64   `json:"maxSimilarity"`
	Vector          []float32 `json:"-"`
}

type Detector struct {
	embedder  Embedder
	store     repository.ChapterEmbeddingRepository
	threshold float64
}

func NewDetector(embedder Embedder, store repository.ChapterEmbeddingRepository, threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{embedder: embedder, store: store, threshold: threshold}
}

// Threshold 返回校正后的默认阈值，编排器以此为准
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Check 将章节文本与同一本书中之前章节的向量比较。
// threshold <= 0 时使用默认阈值。
func (d *Detector) Check(ctx context.Context, generationID, chapterText string, chapterNumber int, threshold float64) (*Result, error) {
	if d == nil || d.embedder == nil || d.store == nil {
		return nil, fmt.Errorf("repetition detector not configured")
	}
	if threshold <= 0 {
		threshold = d.threshold
	}

	vec, err := d.embedder.Embed(ctx, chapterText)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "failed to embed chapter")
	}

	prior, err := d.store.ListBefore(ctx, generationID, chapterNumber)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRepetitionCheckFailed, "failed to load chapter embeddings")
	}

	res := &Result{SimilarChapters: []int{}, Vector: vec}
	compared := false
	for _, emb := range prior {
		if emb == nil || emb.ChapterNumber >= chapterNumber {
			continue
		}
		sim, err := CosineSimilarity(vec, emb.Vector)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeRepetitionCheckFailed, "chapter %d embedding incompatible", emb.ChapterNumber)
		}
		// 没有可比较章节时 MaxSimilarity 保持 0
		if !compared || sim > res.MaxSimilarity {
			res.MaxSimilarity = sim
			compared = true
		}
		if sim >= threshold {
			res.SimilarChapters = append(res.SimilarChapters, emb.ChapterNumber)
		}
	}
	sort.Ints(res.SimilarChapters)
	res.IsRepetitive = res.MaxSimilarity >= threshold

	metrics.RepetitionSimilarity.Observe(res.MaxSimilarity)
	if res.IsRepetitive {
		metrics.RepetitionWarningsTotal.Inc()
	}
	return res, nil
}

// Record 保存章节向量供后续章节比较
func (d *Detector) Record(ctx context.Context, emb *entity.ChapterEmbedding) error {
	if d == nil || d.store == nil || emb == nil {
		return nil
	}
	if strings.TrimSpace(emb.ContentType) == "" {
		emb.ContentType = entity.ContentTypeChapter
	}
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now()
	}
	if err := d.store.Save(ctx, emb); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeVectorDBError, "failed to save chapter %d embedding", emb.ChapterNumber)
	}
	return nil
}
