package memory

import (
	"fmt"
	"strings"
	"time"

	"z-ebook-api/internal/domain/entity"
)

// ChapterOutcome 章节摘要产出，驱动状态迁移
type ChapterOutcome struct {
	Summary               string                        `json:"summary"`
	KeyEvents             []string                      `json:"key_events"`
	CharacterDevelopments []entity.CharacterDevelopment `json:"character_developments"`
}

// InitializeState 由大纲创建第 1 章之前的初始状态，角色从大纲深拷贝
func InitializeState(outline *entity.StoryOutline) *entity.StoryState {
	state := &entity.StoryState{
		CurrentChapter:         1,
		Characters:             make([]entity.CharacterBio, 0, len(outline.CharacterBios)),
		CharacterRelationships: map[string]string{},
		MajorPlotEvents:        []entity.PlotEvent{},
		ActivePlotThreads:      []string{},
		ResolvedConflicts:      []string{},
		PendingConflicts:       []string{},
		CurrentLocations:       []string{},
		WorldChanges:           []string{},
		TimelineEvents:         []string{},
		CurrentMood:            "beginning",
		PacingNotes:            "Story initialization",
		GenerationID:           outline.GenerationID,
		OutlineID:              outline.ID,
		UserID:                 outline.UserID,
		UpdatedAt:              time.Now(),
	}
	if state.OutlineID == "" {
		state.OutlineID = outline.GenerationID
	}
	for _, c := range outline.CharacterBios {
		state.Characters = append(state.Characters, c.Clone())
		for other, rel := range c.Relationships {
			state.CharacterRelationships[c.Name+" -> "+other] = rel
		}
	}
	return state
}

// ApplyChapterOutcome 返回应用第 chapterNumber 章产出后的新状态，入参不被修改。
// 未匹配到的角色名被忽略。
func ApplyChapterOutcome(state *entity.StoryState, chapterNumber int, outcome *ChapterOutcome) *entity.StoryState {
	next := state.Clone()
	if next == nil {
		next = &entity.StoryState{}
	}
	next.CurrentChapter = chapterNumber + 1
	next.UpdatedAt = time.Now()
	if outcome == nil {
		return next
	}

	for _, dev := range outcome.CharacterDevelopments {
		name := strings.TrimSpace(dev.Character)
		if name == "" {
			continue
		}
		for i := range next.Characters {
			if strings.EqualFold(next.Characters[i].Name, name) {
				next.Characters[i].CurrentStatus = statusFromDevelopment(dev)
				break
			}
		}
	}

	for _, ev := range outcome.KeyEvents {
		ev = strings.TrimSpace(ev)
		if ev == "" {
			continue
		}
		next.MajorPlotEvents = append(next.MajorPlotEvents, entity.PlotEvent{
			Event:        ev,
			Chapter:      chapterNumber,
			Consequences: fmt.Sprintf("Event from Chapter %d", chapterNumber),
		})
	}
	return next
}

func statusFromDevelopment(dev entity.CharacterDevelopment) string {
	status := strings.TrimSpace(dev.Development)
	if emo := strings.TrimSpace(dev.EmotionalState); emo != "" {
		status = fmt.Sprintf("%s (%s)", status, emo)
	}
	return status
}
