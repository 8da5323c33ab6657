package milvus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/pkg/metrics"
)

var outputFields = []string{
	"vector", "generation_id", "chapter_number", "chapter_title", "content_type",
	"max_similarity", "similar_chapters", "created_at", "text_content",
}

// ChapterStore 章节向量的 Milvus 实现，vector.backend=milvus 时使用
type ChapterStore struct {
	client *Client
	dim    int
}

// NewChapterStore 创建章节向量仓储，dim 需与 embedder 输出一致
func NewChapterStore(client *Client, dim int) *ChapterStore {
	return &ChapterStore{client: client, dim: dim}
}

// EnsureCollection 确保集合与索引可用，不做 drop/rebuild
func (s *ChapterStore) EnsureCollection(ctx context.Context) error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.ChapterStore.EnsureCollection")
	defer span.End()

	exists, err := s.client.HasCollection(ctx, CollectionChapterEmbeddings)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := ChapterEmbeddingsSchema(s.dim)
		schema.CollectionName = s.client.CollectionName(CollectionChapterEmbeddings)
		if err := s.client.milvus.CreateCollection(ctx, schema, milvusentity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := milvusentity.NewIndexHNSW(milvusentity.COSINE, s.client.config.HNSWM, s.client.config.HNSWEfConstruction)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := s.client.milvus.CreateIndex(ctx, schema.CollectionName, "vector", idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return s.client.LoadCollection(ctx, CollectionChapterEmbeddings)
}

// Save 按 generation_id:chapter_number 覆盖写入
func (s *ChapterStore) Save(ctx context.Context, e *entity.ChapterEmbedding) error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.ChapterStore.Save",
		trace.WithAttributes(
			attribute.String("generation_id", e.GenerationID),
			attribute.Int("chapter_number", e.ChapterNumber),
		))
	defer span.End()

	if len(e.Vector) != s.dim {
		return fmt.Errorf("chapter %d vector has %d dimensions, collection expects %d", e.ChapterNumber, len(e.Vector), s.dim)
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.client.milvus.Upsert(ctx, s.client.CollectionName(CollectionChapterEmbeddings), "",
		milvusentity.NewColumnVarChar("id", []string{rowID(e.GenerationID, e.ChapterNumber)}),
		milvusentity.NewColumnFloatVector("vector", s.dim, [][]float32{e.Vector}),
		milvusentity.NewColumnVarChar("generation_id", []string{e.GenerationID}),
		milvusentity.NewColumnInt64("chapter_number", []int64{int64(e.ChapterNumber)}),
		milvusentity.NewColumnVarChar("chapter_title", []string{truncateBytes(e.ChapterTitle, 512)}),
		milvusentity.NewColumnVarChar("content_type", []string{e.ContentType}),
		milvusentity.NewColumnDouble("max_similarity", []float64{e.MaxSimilarityScore}),
		milvusentity.NewColumnVarChar("similar_chapters", []string{joinChapters(e.SimilarChapterNumbers)}),
		milvusentity.NewColumnInt64("created_at", []int64{created.UnixMilli()}),
		milvusentity.NewColumnVarChar("text_content", []string{truncateBytes(e.TextContent, maxTextLength)}),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chapter embedding: %w", err)
	}
	return nil
}

// ListBefore 强一致读取前序章节向量，按章节号升序
func (s *ChapterStore) ListBefore(ctx context.Context, generationID string, chapterNumber int) ([]*entity.ChapterEmbedding, error) {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.ChapterStore.ListBefore",
		trace.WithAttributes(
			attribute.String("generation_id", generationID),
			attribute.Int("chapter_number", chapterNumber),
		))
	defer span.End()

	if chapterNumber <= 1 {
		return []*entity.ChapterEmbedding{}, nil
	}

	collection := s.client.CollectionName(CollectionChapterEmbeddings)
	start := time.Now()
	rs, err := s.client.milvus.Query(ctx,
		collection,
		nil,
		beforeExpr(generationID, chapterNumber),
		outputFields,
		client.WithSearchQueryConsistencyLevel(milvusentity.ClStrong),
	)
	metrics.MilvusSearchDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(collection, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chapter embeddings: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(collection, "success").Inc()

	out, err := decodeEmbeddings(rs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func decodeEmbeddings(rs client.ResultSet) ([]*entity.ChapterEmbedding, error) {
	vectors, ok := rs.GetColumn("vector").(*milvusentity.ColumnFloatVector)
	if !ok {
		return []*entity.ChapterEmbedding{}, nil
	}
	gens, _ := rs.GetColumn("generation_id").(*milvusentity.ColumnVarChar)
	numbers, _ := rs.GetColumn("chapter_number").(*milvusentity.ColumnInt64)
	titles, _ := rs.GetColumn("chapter_title").(*milvusentity.ColumnVarChar)
	types, _ := rs.GetColumn("content_type").(*milvusentity.ColumnVarChar)
	scores, _ := rs.GetColumn("max_similarity").(*milvusentity.ColumnDouble)
	similar, _ := rs.GetColumn("similar_chapters").(*milvusentity.ColumnVarChar)
	created, _ := rs.GetColumn("created_at").(*milvusentity.ColumnInt64)
	texts, _ := rs.GetColumn("text_content").(*milvusentity.ColumnVarChar)
	if gens == nil || numbers == nil {
		return nil, fmt.Errorf("milvus result is missing key columns")
	}

	out := make([]*entity.ChapterEmbedding, 0, vectors.Len())
	for i, vec := range vectors.Data() {
		e := &entity.ChapterEmbedding{
			GenerationID:  gens.Data()[i],
			ChapterNumber: int(numbers.Data()[i]),
			Vector:        vec,
		}
		if titles != nil {
			e.ChapterTitle = titles.Data()[i]
		}
		if types != nil {
			e.ContentType = types.Data()[i]
		}
		if scores != nil {
			e.MaxSimilarityScore = scores.Data()[i]
		}
		if similar != nil {
			e.SimilarChapterNumbers = splitChapters(similar.Data()[i])
		}
		if created != nil {
			e.CreatedAt = time.UnixMilli(created.Data()[i])
		}
		if texts != nil {
			e.TextContent = texts.Data()[i]
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterNumber < out[j].ChapterNumber })
	return out, nil
}

func rowID(generationID string, chapterNumber int) string {
	return generationID + ":" + strconv.Itoa(chapterNumber)
}

func beforeExpr(generationID string, chapterNumber int) string {
	return fmt.Sprintf("generation_id == %s && chapter_number < %d", strconv.Quote(generationID), chapterNumber)
}

func joinChapters(nums []int) string {
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}

func splitChapters(s string) []int {
	out := []int{}
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// truncateBytes 按字节截断且不切断 UTF-8 字符
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
