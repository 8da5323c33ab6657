package entity

import (
	"time"
)

// CharacterDevelopment 角色在某章中的变化
type CharacterDevelopment struct {
	Character      string `json:"character"`
	Development    string `json:"development"`
	EmotionalState string `json:"emotional_state,omitempty"`
}

// ChapterSummary 章节摘要，创建后不可变
type ChapterSummary struct {
	GenerationID          string                 `json:"generation_id"`
	OutlineID             string                 `json:"outline_id"`
	UserID                string                 `json:"user_id"`
	ChapterNumber         int                    `json:"chapter_number"`
	ChapterTitle          string                 `json:"chapter_title"`
	Summary               string                 `json:"summary"`
	KeyEvents             []string               `json:"key_events"`
	CharacterDevelopments []CharacterDevelopment `json:"character_developments"`
	LastChapterExcerpt    string                 `json:"last_chapter_excerpt"`
	WordCount             int                    `json:"word_count"`
	CharCount             int                    `json:"char_count"`
	CreatedAt             time.Time              `json:"created_at"`
}
