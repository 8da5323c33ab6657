// Package memory 维护跨章节的故事记忆：有界上下文拼装、状态迁移与快照缓存。
//
// 上下文只携带章节摘要和上一章结尾摘录，不回放完整正文，
// 因此提示词长度随章节数线性增长且每章开销固定。
package memory

import (
	"fmt"
	"sort"
	"strings"

	"z-ebook-api/internal/domain/entity"
)

// DefaultExcerptWords 章节结尾摘录的默认词数
const DefaultExcerptWords = 200

// BuildContext 为第 chapterNumber 章拼装故事上下文。
// priorSummaries 须按章节号升序，且只包含之前的章节。
func BuildContext(outline *entity.StoryOutline, priorSummaries []*entity.ChapterSummary, state *entity.StoryState, chapterNumber int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STORY CONTEXT FOR CHAPTER %d:\n\n", chapterNumber)

	if outline != nil {
		fmt.Fprintf(&b, "BOOK: %s\n", outline.BookTitle)
		fmt.Fprintf(&b, "DESCRIPTION: %s\n", outline.BookDescription)
		fmt.Fprintf(&b, "THEMES: %s\n\n", strings.Join(outline.KeyThemes, ", "))
		fmt.Fprintf(&b, "OVERALL PLOT: %s\n\n", outline.PlotOutline)
	}

	if state != nil && len(state.Characters) > 0 {
		b.WriteString("CHARACTERS:\n")
		for _, c := range state.Characters {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Name, c.Description, c.Personality)
			if c.Goals != "" {
				fmt.Fprintf(&b, "  Goals: %s\n", c.Goals)
			}
			if c.CurrentStatus != "" {
				fmt.Fprintf(&b, "  Current Status: %s\n", c.CurrentStatus)
			}
		}
		b.WriteString("\n")
	}

	if outline != nil && len(outline.WorldInfo) > 0 {
		b.WriteString("WORLD/SETTING:\n")
		keys := make([]string, 0, len(outline.WorldInfo))
		for k := range outline.WorldInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, outline.WorldInfo[k])
		}
		b.WriteString("\n")
	}

	if len(priorSummaries) > 0 {
		b.WriteString("PREVIOUS CHAPTERS:\n")
		for _, s := range priorSummaries {
			fmt.Fprintf(&b, "Chapter %d - %s:\n", s.ChapterNumber, s.ChapterTitle)
			fmt.Fprintf(&b, "%s\n", s.Summary)
			if len(s.KeyEvents) > 0 {
				fmt.Fprintf(&b, "Key events: %s\n", strings.Join(s.KeyEvents, ", "))
			}
			b.WriteString("\n")
		}
	}

	if state != nil {
		if len(state.MajorPlotEvents) > 0 {
			b.WriteString("MAJOR PLOT EVENTS COMPLETED:\n")
			for i, e := range state.MajorPlotEvents {
				fmt.Fprintf(&b, "%d. %s (Chapter %d)\n", i+1, e.Event, e.Chapter)
			}
			b.WriteString("\n")
		}
		writeNumbered(&b, "ACTIVE PLOT THREADS:", state.ActivePlotThreads)
		writeNumbered(&b, "UNRESOLVED CONFLICTS:", state.PendingConflicts)
	}

	if outline != nil {
		if planned, ok := outline.PlannedSummary(chapterNumber); ok {
			fmt.Fprintf(&b, "PLANNED CHAPTER %d SUMMARY: %s\n\n", chapterNumber, planned)
		}
	}

	if n := len(priorSummaries); n > 0 {
		if excerpt := priorSummaries[n-1].LastChapterExcerpt; excerpt != "" {
			fmt.Fprintf(&b, "LAST CHAPTER ENDING:\n%s\n\n", excerpt)
		}
	}

	return b.String()
}

func writeNumbered(b *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(header)
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
	b.WriteString("\n")
}

// ExtractLastWords 返回文本最后 n 个词；词数不超过 n 时原样返回
func ExtractLastWords(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 {
		return ""
	}
	if len(words) <= n {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

// WordCount 按空白分词计数
func WordCount(text string) int {
	return len(strings.Fields(text))
}
