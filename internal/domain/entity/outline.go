package entity

import (
	"time"
)

// CharacterBio 角色小传
type CharacterBio struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Personality   string            `json:"personality"`
	Goals         string            `json:"goals"`
	Relationships map[string]string `json:"relationships,omitempty"`
	CurrentStatus string            `json:"current_status,omitempty"`
}

// Clone 深拷贝
func (c CharacterBio) Clone() CharacterBio {
	out := c
	if c.Relationships != nil {
		out.Relationships = make(map[string]string, len(c.Relationships))
		for k, v := range c.Relationships {
			out.Relationships[k] = v
		}
	}
	return out
}

// StoryOutline 全书大纲，创建后只读
type StoryOutline struct {
	ID               string            `json:"id"`
	GenerationID     string            `json:"generation_id"`
	UserID           string            `json:"user_id"`
	BookTitle        string            `json:"book_title"`
	BookDescription  string            `json:"book_description"`
	ChapterTitles    []string          `json:"chapter_titles"`
	ChapterSummaries []string          `json:"chapter_summaries"`
	CharacterBios    []CharacterBio    `json:"character_bios"`
	WorldInfo        map[string]string `json:"world_info"`
	KeyThemes        []string          `json:"key_themes"`
	PlotOutline      string            `json:"plot_outline"`
	TotalChapters    int               `json:"total_chapters"`
	StoryFormat      string            `json:"story_format"`
	Theme            string            `json:"theme,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// ChapterTitle 返回第 n 章（从 1 开始）的标题
func (o *StoryOutline) ChapterTitle(n int) string {
	if n < 1 || n > len(o.ChapterTitles) {
		return ""
	}
	return o.ChapterTitles[n-1]
}

// PlannedSummary 返回第 n 章的计划摘要
func (o *StoryOutline) PlannedSummary(n int) (string, bool) {
	if n < 1 || n > len(o.ChapterSummaries) {
		return "", false
	}
	return o.ChapterSummaries[n-1], true
}
