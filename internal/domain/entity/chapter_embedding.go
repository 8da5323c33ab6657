package entity

import (
	"time"
)

// ContentTypeChapter 章节正文向量
const ContentTypeChapter = "chapter"

// ChapterEmbedding 章节向量，仅用于后续章节的重复检测
type ChapterEmbedding struct {
	GenerationID          string    `json:"generation_id"`
	ChapterNumber         int       `json:"chapter_number"`
	ChapterTitle          string    `json:"chapter_title"`
	Vector                []float32 `json:"vector"`
	TextContent           string    `json:"text_content"`
	ContentType           string    `json:"content_type"`
	MaxSimilarityScore    float64   `json:"max_similarity_score"`
	SimilarChapterNumbers []int     `json:"similar_chapter_numbers"`
	CreatedAt             time.Time `json:"created_at"`
}
