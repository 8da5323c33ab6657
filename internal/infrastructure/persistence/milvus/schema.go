package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionChapterEmbeddings 章节向量集合
	CollectionChapterEmbeddings = "chapter_embeddings"

	// maxTextLength text_content 字段上限（字节）
	maxTextLength = 65535
)

// ChapterEmbeddingsSchema 章节向量 Collection Schema，dim 与 embedding.dimension 一致
func ChapterEmbeddingsSchema(dim int) *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}

	id := varchar("id", 128)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: CollectionChapterEmbeddings,
		Description:    "Chapter embeddings for repetition detection",
		Fields: []*entity.Field{
			id,
			{
				Name:       "vector",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
			varchar("generation_id", 64),
			{Name: "chapter_number", DataType: entity.FieldTypeInt64},
			varchar("chapter_title", 512),
			varchar("content_type", 32),
			{Name: "max_similarity", DataType: entity.FieldTypeDouble},
			varchar("similar_chapters", 1024),
			{Name: "created_at", DataType: entity.FieldTypeInt64},
			varchar("text_content", maxTextLength),
		},
	}
}
