package memory

import (
	"fmt"
	"strings"
	"testing"

	"z-ebook-api/internal/domain/entity"
)

func testOutline(chapters int) *entity.StoryOutline {
	o := &entity.StoryOutline{
		GenerationID:    "gen-1",
		BookTitle:       "The Lantern Keeper",
		BookDescription: "A lighthouse girl learns the sea's secrets.",
		KeyThemes:       []string{"courage", "family"},
		PlotOutline:     "Mira keeps the light burning through three storms.",
		CharacterBios: []entity.CharacterBio{
			{Name: "Mira", Description: "lighthouse keeper's daughter", Personality: "stubborn", Goals: "keep the light on", Relationships: map[string]string{"Tomas": "brother"}},
			{Name: "Tomas", Description: "fisherman", Personality: "gentle"},
		},
		WorldInfo:     map[string]string{"setting": "northern coast", "era": "1890s"},
		TotalChapters: chapters,
	}
	for i := 1; i <= chapters; i++ {
		o.ChapterTitles = append(o.ChapterTitles, fmt.Sprintf("Storm %d", i))
		o.ChapterSummaries = append(o.ChapterSummaries, fmt.Sprintf("planned summary %d", i))
	}
	return o
}

// chapterText 生成带唯一标记的长正文，便于判断上下文是否泄漏全文
func chapterText(n int) string {
	words := make([]string, 0, 500)
	words = append(words, fmt.Sprintf("BEGIN-CH%d", n))
	for i := 0; i < 498; i++ {
		words = append(words, fmt.Sprintf("c%dw%d", n, i))
	}
	words = append(words, fmt.Sprintf("END-CH%d", n))
	return strings.Join(words, " ")
}

func summaryFor(n int, text string) *entity.ChapterSummary {
	return &entity.ChapterSummary{
		ChapterNumber:      n,
		ChapterTitle:       fmt.Sprintf("Storm %d", n),
		Summary:            fmt.Sprintf("summary of chapter %d", n),
		KeyEvents:          []string{fmt.Sprintf("event %d", n)},
		LastChapterExcerpt: ExtractLastWords(text, DefaultExcerptWords),
		WordCount:          WordCount(text),
	}
}

func TestBuildContextChapterOne(t *testing.T) {
	outline := testOutline(3)
	state := InitializeState(outline)

	got := BuildContext(outline, nil, state, 1)

	for _, want := range []string{
		"STORY CONTEXT FOR CHAPTER 1:",
		"BOOK: The Lantern Keeper",
		"THEMES: courage, family",
		"OVERALL PLOT: Mira keeps the light burning",
		"- Mira: lighthouse keeper's daughter (stubborn)",
		"  Goals: keep the light on",
		"PLANNED CHAPTER 1 SUMMARY: planned summary 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q", want)
		}
	}
	for _, absent := range []string{"PREVIOUS CHAPTERS:", "LAST CHAPTER ENDING:", "MAJOR PLOT EVENTS COMPLETED:"} {
		if strings.Contains(got, absent) {
			t.Errorf("chapter 1 context should not contain %q", absent)
		}
	}
}

func TestBuildContextSectionOrder(t *testing.T) {
	outline := testOutline(3)
	state := InitializeState(outline)
	state.ActivePlotThreads = []string{"the missing boat"}
	state.PendingConflicts = []string{"the harbor master's debt"}
	state = ApplyChapterOutcome(state, 1, &ChapterOutcome{KeyEvents: []string{"storm hits"}})

	got := BuildContext(outline, []*entity.ChapterSummary{summaryFor(1, chapterText(1))}, state, 2)

	order := []string{
		"STORY CONTEXT FOR CHAPTER 2:",
		"BOOK:",
		"DESCRIPTION:",
		"THEMES:",
		"OVERALL PLOT:",
		"CHARACTERS:",
		"WORLD/SETTING:",
		"PREVIOUS CHAPTERS:",
		"MAJOR PLOT EVENTS COMPLETED:",
		"ACTIVE PLOT THREADS:",
		"UNRESOLVED CONFLICTS:",
		"PLANNED CHAPTER 2 SUMMARY:",
		"LAST CHAPTER ENDING:",
	}
	last := -1
	for _, header := range order {
		idx := strings.Index(got, header)
		if idx < 0 {
			t.Fatalf("missing section %q", header)
		}
		if idx <= last {
			t.Errorf("section %q out of order", header)
		}
		last = idx
	}
	if !strings.Contains(got, "1. storm hits (Chapter 1)") {
		t.Errorf("plot event line missing:\n%s", got)
	}
	if strings.Index(got, "- era: 1890s") > strings.Index(got, "- setting: northern coast") {
		t.Error("world info keys should be sorted")
	}
}

func TestBuildContextUsesOnlySummariesAndLastExcerpt(t *testing.T) {
	const chapters = 5
	outline := testOutline(chapters)
	state := InitializeState(outline)

	var summaries []*entity.ChapterSummary
	texts := map[int]string{}
	for k := 1; k <= chapters; k++ {
		got := BuildContext(outline, summaries, state, k)

		if k > 1 {
			prev := texts[k-1]
			if !strings.Contains(got, ExtractLastWords(prev, DefaultExcerptWords)) {
				t.Errorf("chapter %d context lacks excerpt of chapter %d", k, k-1)
			}
			if !strings.Contains(got, fmt.Sprintf("END-CH%d", k-1)) {
				t.Errorf("chapter %d context lacks ending of chapter %d", k, k-1)
			}
			if strings.Contains(got, fmt.Sprintf("BEGIN-CH%d", k-1)) {
				t.Errorf("chapter %d context carries the full text of chapter %d", k, k-1)
			}
		}
		for j := 1; j < k-1; j++ {
			if strings.Contains(got, texts[j]) {
				t.Errorf("chapter %d context contains the full text of chapter %d", k, j)
			}
			if strings.Contains(got, fmt.Sprintf("END-CH%d", j)) {
				t.Errorf("chapter %d context contains prose of chapter %d", k, j)
			}
		}

		texts[k] = chapterText(k)
		summaries = append(summaries, summaryFor(k, texts[k]))
		state = ApplyChapterOutcome(state, k, &ChapterOutcome{Summary: summaries[k-1].Summary})
	}
}

func TestBuildContextBeyondOutlineOmitsPlannedSummary(t *testing.T) {
	outline := testOutline(2)
	got := BuildContext(outline, nil, nil, 3)
	if strings.Contains(got, "PLANNED CHAPTER") {
		t.Error("planned summary should be omitted past the outline")
	}
	if strings.Contains(got, "CHARACTERS:") {
		t.Error("characters come from state; nil state should omit them")
	}
}

func TestExtractLastWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"shorter than n", "one two three", 5, "one two three"},
		{"exact tail", "one two three four", 2, "three four"},
		{"collapses whitespace", "a  b\n\nc   d", 3, "b c d"},
		{"zero", "one two", 0, ""},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractLastWords(tt.text, tt.n); got != tt.want {
				t.Errorf("ExtractLastWords(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}
