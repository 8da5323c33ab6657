package dto

import (
	"time"

	"z-ebook-api/internal/application/story/memory"
	"z-ebook-api/internal/application/story/orchestrator"
	"z-ebook-api/internal/domain/entity"
)

// CreateGenerationRequest 发起生成请求，SSE/WebSocket/异步三种入口共用
type CreateGenerationRequest struct {
	SourceText   string `json:"sourceText" binding:"required,max=20000"`
	ChapterCount int    `json:"chapterCount" binding:"omitempty,min=1,max=50"`
	Format       string `json:"format" binding:"omitempty,max=32"`
	Theme        string `json:"theme" binding:"omitempty,max=64"`
	WithImages   bool   `json:"withImages"`
}

// ToRequest 转为编排请求
func (r *CreateGenerationRequest) ToRequest(generationID, userID string) orchestrator.Request {
	return orchestrator.Request{
		GenerationID: generationID,
		UserID:       userID,
		SourceText:   r.SourceText,
		ChapterCount: r.ChapterCount,
		Format:       r.Format,
		Theme:        r.Theme,
		WithImages:   r.WithImages,
	}
}

// GenerationAcceptedResponse 异步生成受理响应
type GenerationAcceptedResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	MessageID    string `json:"message_id,omitempty"`
}

// GeneratedChapterResponse 章节
type GeneratedChapterResponse struct {
	Number    int                    `json:"number"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content,omitempty"`
	WordCount int                    `json:"word_count"`
	Image     *entity.GeneratedImage `json:"image,omitempty"`
}

// GenerationResponse 生成记录响应
type GenerationResponse struct {
	ID            string                      `json:"id"`
	Title         string                      `json:"title"`
	Description   string                      `json:"description,omitempty"`
	StoryType     string                      `json:"story_type"`
	Theme         string                      `json:"theme,omitempty"`
	Status        string                      `json:"status"`
	ChapterCount  int                         `json:"chapter_count"`
	WordCount     int                         `json:"word_count"`
	CoverImageURL string                      `json:"cover_image_url,omitempty"`
	ErrorMessage  string                      `json:"error_message,omitempty"`
	Chapters      []*GeneratedChapterResponse `json:"chapters,omitempty"`
	CreatedAt     string                      `json:"created_at"`
	UpdatedAt     string                      `json:"updated_at"`
	CompletedAt   string                      `json:"completed_at,omitempty"`
}

// ToGenerationResponse withContent 为 false 时省略章节正文（列表场景）
func ToGenerationResponse(g *entity.EbookGeneration, withContent bool) *GenerationResponse {
	if g == nil {
		return nil
	}
	resp := &GenerationResponse{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		StoryType:     g.StoryType,
		Theme:         g.Theme,
		Status:        string(g.Status),
		ChapterCount:  g.ChapterCount,
		WordCount:     g.WordCount,
		CoverImageURL: g.CoverImageURL,
		ErrorMessage:  g.ErrorMessage,
		CreatedAt:     g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     g.UpdatedAt.Format(time.RFC3339),
	}
	if g.CompletedAt != nil {
		resp.CompletedAt = g.CompletedAt.Format(time.RFC3339)
	}
	if withContent {
		resp.Chapters = make([]*GeneratedChapterResponse, 0, len(g.Chapters))
		for _, ch := range g.Chapters {
			item := &GeneratedChapterResponse{
				Number:    ch.Number,
				Title:     ch.Title,
				Content:   ch.Content,
				WordCount: ch.WordCount,
			}
			if img, ok := g.ImageForChapter(ch.Number); ok {
				item.Image = &img
			}
			resp.Chapters = append(resp.Chapters, item)
		}
	}
	return resp
}

// GenerationListResponse 生成记录列表
type GenerationListResponse struct {
	Generations []*GenerationResponse `json:"generations"`
}

// MemoryResponse 记忆视图：大纲、故事状态与章节摘要
type MemoryResponse struct {
	GenerationID string                   `json:"generation_id"`
	Source       string                   `json:"source"` // cache | store
	Outline      *entity.StoryOutline     `json:"outline,omitempty"`
	State        *entity.StoryState       `json:"state,omitempty"`
	Summaries    []*entity.ChapterSummary `json:"summaries"`
}

// ToMemoryResponse 由快照构建记忆视图
func ToMemoryResponse(generationID, source string, snap *memory.Snapshot) *MemoryResponse {
	resp := &MemoryResponse{GenerationID: generationID, Source: source, Summaries: []*entity.ChapterSummary{}}
	if snap == nil {
		return resp
	}
	resp.Outline = snap.Outline
	resp.State = snap.State
	if snap.Summaries != nil {
		resp.Summaries = snap.Summaries
	}
	return resp
}
