// Package entity 定义领域实体
package entity

import (
	"time"
)

// GenerationStatus 电子书生成状态
type GenerationStatus string

const (
	GenerationStatusDraft      GenerationStatus = "draft"
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal 是否为终态
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// GeneratedChapter 已生成的章节正文
type GeneratedChapter struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// ImageKind 插图类型
type ImageKind string

const (
	ImageKindChapter ImageKind = "chapter"
	ImageKindCover   ImageKind = "cover"
)

// GeneratedImage 插图生成结果
type GeneratedImage struct {
	Kind          ImageKind `json:"kind"`
	URL           string    `json:"url"`
	Prompt        string    `json:"prompt"`
	ChapterNumber int       `json:"chapter_number,omitempty"`
	ChapterTitle  string    `json:"chapter_title,omitempty"`
	RevisedPrompt string    `json:"revised_prompt,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// EbookGeneration 一次电子书生成记录，ID 即整个运行的租户键
type EbookGeneration struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	StoryType     string             `json:"story_type"`
	Theme         string             `json:"theme,omitempty"`
	Status        GenerationStatus   `json:"status"`
	Chapters      []GeneratedChapter `json:"chapters"`
	Images        []GeneratedImage   `json:"images"`
	ChapterCount  int                `json:"chapter_count"`
	WordCount     int                `json:"word_count"`
	CoverImageURL string             `json:"cover_image_url,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

// NewEbookGeneration 创建占位记录
func NewEbookGeneration(id, userID, storyType, theme string, chapterCount int) *EbookGeneration {
	now := time.Now()
	return &EbookGeneration{
		ID:           id,
		UserID:       userID,
		Title:        "Generating...",
		StoryType:    storyType,
		Theme:        theme,
		Status:       GenerationStatusGenerating,
		Chapters:     []GeneratedChapter{},
		Images:       []GeneratedImage{},
		ChapterCount: chapterCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ImageForChapter 返回指定章节的插图
func (g *EbookGeneration) ImageForChapter(n int) (GeneratedImage, bool) {
	for _, img := range g.Images {
		if img.Kind == ImageKindChapter && img.ChapterNumber == n {
			return img, true
		}
	}
	return GeneratedImage{}, false
}
