package outline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"z-ebook-api/internal/workflow/llmtest"
	apperrors "z-ebook-api/pkg/errors"
)

const validOutlineJSON = `Here is the plan:
{
  "book_title": "The Lantern Keeper",
  "book_description": "A lighthouse story.",
  "chapter_titles": ["Storm", "Calm"],
  "chapter_summaries": ["The storm arrives.", "The sea settles."],
  "character_bios": [
    {"name": " Mira ", "description": "keeper", "personality": "stubborn", "goals": "light", "relationships": {"Tomas": "brother"}},
    {"name": ""}
  ],
  "world_info": {"setting": "coast", "magic": {"level": "low"}},
  "key_themes": ["courage"],
  "plot_outline": "Mira survives two nights."
}`

func TestParseOutline(t *testing.T) {
	outline, err := ParseOutline(validOutlineJSON, 2)
	if err != nil {
		t.Fatalf("ParseOutline: %v", err)
	}
	if outline.BookTitle != "The Lantern Keeper" {
		t.Errorf("title = %q", outline.BookTitle)
	}
	if len(outline.ChapterTitles) != 2 || len(outline.ChapterSummaries) != 2 || outline.TotalChapters != 2 {
		t.Errorf("chapter lists = %d/%d total %d", len(outline.ChapterTitles), len(outline.ChapterSummaries), outline.TotalChapters)
	}
	if len(outline.CharacterBios) != 1 || outline.CharacterBios[0].Name != "Mira" {
		t.Errorf("character bios = %+v", outline.CharacterBios)
	}
	if outline.WorldInfo["setting"] != "coast" || outline.WorldInfo["magic"] != `{"level":"low"}` {
		t.Errorf("world info = %v", outline.WorldInfo)
	}
}

func TestParseOutlineRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		count   int
		wantErr string
	}{
		{"empty", "   ", 2, "empty outline"},
		{"not json", "{broken", 2, "parse outline json"},
		{"missing title", `{"chapter_titles":["a"],"chapter_summaries":["b"]}`, 1, "BookTitle"},
		{"blank chapter title", `{"book_title":"t","chapter_titles":[""],"chapter_summaries":["b"]}`, 1, "ChapterTitles[0]"},
		{"count mismatch", `{"book_title":"t","chapter_titles":["a","b"],"chapter_summaries":["a","b"]}`, 3, "want 3"},
		{"parallel lists differ", `{"book_title":"t","chapter_titles":["a","b"],"chapter_summaries":["a"]}`, 2, "chapter_summaries has 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutline(tt.raw, tt.count)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlannerPlan(t *testing.T) {
	chat := &llmtest.ChatModel{Respond: func(_ context.Context, workflow string, msgs []*schema.Message) (*schema.Message, error) {
		if workflow != "outline_plan" {
			t.Errorf("workflow = %q", workflow)
		}
		if !strings.Contains(llmtest.UserText(msgs), "coming-of-age") {
			t.Errorf("themed prompt not used")
		}
		return llmtest.Assistant(validOutlineJSON), nil
	}}
	p := NewPlanner(&llmtest.Factory{Model: chat})

	outline, meta, err := p.Plan(context.Background(), PlanInput{
		SourceText:   "A girl and a lighthouse.",
		ChapterCount: 2,
		ThemeHint:    "coming-of-age",
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if outline.StoryFormat != DefaultFormat || outline.Theme != "coming-of-age" || outline.ID == "" {
		t.Errorf("outline metadata = %q/%q/%q", outline.StoryFormat, outline.Theme, outline.ID)
	}
	if meta == nil || meta.Temperature < 0.69 || meta.Temperature > 0.71 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestPlannerErrors(t *testing.T) {
	tests := []struct {
		name    string
		factory *llmtest.Factory
		in      PlanInput
		want    *apperrors.AppError
	}{
		{
			name:    "zero chapters",
			factory: &llmtest.Factory{Model: &llmtest.ChatModel{}},
			in:      PlanInput{SourceText: "x", ChapterCount: 0},
			want:    apperrors.ErrInvalidParam,
		},
		{
			name:    "empty source",
			factory: &llmtest.Factory{Model: &llmtest.ChatModel{}},
			in:      PlanInput{SourceText: "  ", ChapterCount: 1},
			want:    apperrors.ErrInvalidParam,
		},
		{
			name:    "collaborator down",
			factory: &llmtest.Factory{Err: errors.New("503 from provider")},
			in:      PlanInput{SourceText: "x", ChapterCount: 1},
			want:    apperrors.ErrGenerationUnavailable,
		},
		{
			name: "malformed response",
			factory: &llmtest.Factory{Model: &llmtest.ChatModel{Respond: func(context.Context, string, []*schema.Message) (*schema.Message, error) {
				return llmtest.Assistant("sorry, I cannot do that"), nil
			}}},
			in:   PlanInput{SourceText: "x", ChapterCount: 1},
			want: apperrors.ErrOutlineParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewPlanner(tt.factory).Plan(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
