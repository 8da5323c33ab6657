package entity

import (
	"time"
)

// PlotEvent 主要情节事件
type PlotEvent struct {
	Event        string `json:"event"`
	Chapter      int    `json:"chapter"`
	Consequences string `json:"consequences,omitempty"`
}

// StoryState 故事状态快照，每本书一行
type StoryState struct {
	GenerationID           string            `json:"generation_id"`
	OutlineID              string            `json:"outline_id"`
	UserID                 string            `json:"user_id"`
	CurrentChapter         int               `json:"current_chapter"`
	Characters             []CharacterBio    `json:"characters"`
	CharacterRelationships map[string]string `json:"character_relationships"`
	MajorPlotEvents        []PlotEvent       `json:"major_plot_events"`
	ActivePlotThreads      []string          `json:"active_plot_threads"`
	ResolvedConflicts      []string          `json:"resolved_conflicts"`
	PendingConflicts       []string          `json:"pending_conflicts"`
	CurrentLocations       []string          `json:"current_locations"`
	WorldChanges           []string          `json:"world_changes"`
	TimelineEvents         []string          `json:"timeline_events"`
	CurrentMood            string            `json:"current_mood"`
	PacingNotes            string            `json:"pacing_notes"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// Clone 深拷贝，状态迁移基于副本进行
func (s *StoryState) Clone() *StoryState {
	if s == nil {
		return nil
	}
	out := *s
	out.Characters = make([]CharacterBio, len(s.Characters))
	for i, c := range s.Characters {
		out.Characters[i] = c.Clone()
	}
	if s.CharacterRelationships != nil {
		out.CharacterRelationships = make(map[string]string, len(s.CharacterRelationships))
		for k, v := range s.CharacterRelationships {
			out.CharacterRelationships[k] = v
		}
	}
	out.MajorPlotEvents = append([]PlotEvent(nil), s.MajorPlotEvents...)
	out.ActivePlotThreads = cloneStrings(s.ActivePlotThreads)
	out.ResolvedConflicts = cloneStrings(s.ResolvedConflicts)
	out.PendingConflicts = cloneStrings(s.PendingConflicts)
	out.CurrentLocations = cloneStrings(s.CurrentLocations)
	out.WorldChanges = cloneStrings(s.WorldChanges)
	out.TimelineEvents = cloneStrings(s.TimelineEvents)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
