package orchestrator

import (
	"z-ebook-api/internal/application/story/repetition"
	"z-ebook-api/internal/domain/entity"
)

// EventType 事件类型
type EventType string

const (
	EventProgress    EventType = "progress"
	EventOutline     EventType = "outline"
	EventChapter     EventType = "chapter"
	EventMemoryCheck EventType = "memory_check"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// IsTerminal 流以且仅以一个终止事件结束
func (t EventType) IsTerminal() bool {
	return t == EventComplete || t == EventError
}

// MemoryWarning 重复检测告警
type MemoryWarning struct {
	IsRepetitive    bool    `json:"isRepetitive"`
	SimilarChapters []int   `json:"similarChapters"`
	MaxSimilarity   float64 `json:"maxSimilarity"`
}

func newMemoryWarning(res *repetition.Result) *MemoryWarning {
	return &MemoryWarning{
		IsRepetitive:    res.IsRepetitive,
		SimilarChapters: append([]int{}, res.SimilarChapters...),
		MaxSimilarity:   res.MaxSimilarity,
	}
}

// Event 推送给调用方的单个事件
type Event struct {
	Type           EventType `json:"type"`
	GenerationID   string    `json:"generationId,omitempty"`
	CurrentChapter int       `json:"currentChapter,omitempty"`
	TotalChapters  int       `json:"totalChapters,omitempty"`
	ChapterTitle   string    `json:"chapterTitle,omitempty"`
	ChapterContent string    `json:"chapterContent,omitempty"`
	Progress       int       `json:"progress"`
	Message        string    `json:"message,omitempty"`
	// Code 仅 error 事件携带
	Code                   string                 `json:"code,omitempty"`
	Outline                *entity.StoryOutline   `json:"outline,omitempty"`
	MemoryWarning          *MemoryWarning         `json:"memoryWarning,omitempty"`
	Image                  *entity.GeneratedImage `json:"image,omitempty"`
	EstimatedTimeRemaining int                    `json:"estimatedTimeRemaining,omitempty"`
}

// Emitter 接收事件；返回 false 表示调用方已离开
type Emitter func(Event) bool
