package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"z-ebook-api/internal/workflow/llmtest"
	apperrors "z-ebook-api/pkg/errors"
)

const outcomeJSON = "```json\n" + `{
  "summary": " Mira keeps the light burning. ",
  "key_events": ["storm hits", ""],
  "character_developments": [
    {"character": "Mira", "development": "grows braver", "emotional_state": "tired"},
    {"character": " ", "development": "ignored"}
  ]
}` + "\n```"

func TestParseOutcome(t *testing.T) {
	out, err := ParseOutcome(outcomeJSON)
	if err != nil {
		t.Fatalf("ParseOutcome: %v", err)
	}
	if out.Summary != "Mira keeps the light burning." {
		t.Errorf("summary = %q", out.Summary)
	}
	if len(out.KeyEvents) != 1 || out.KeyEvents[0] != "storm hits" {
		t.Errorf("key events = %v", out.KeyEvents)
	}
	if len(out.CharacterDevelopments) != 1 || out.CharacterDevelopments[0].EmotionalState != "tired" {
		t.Errorf("developments = %+v", out.CharacterDevelopments)
	}
}

func TestSummarize(t *testing.T) {
	chat := &llmtest.ChatModel{Respond: func(_ context.Context, workflow string, msgs []*schema.Message) (*schema.Message, error) {
		if workflow != "chapter_summary" {
			t.Errorf("workflow = %q", workflow)
		}
		text := llmtest.UserText(msgs)
		if !strings.Contains(text, "Chapter 1: the storm came") {
			t.Errorf("prompt lacks previous summaries:\n%s", text)
		}
		return llmtest.Assistant(outcomeJSON), nil
	}}

	out, meta, err := NewSummarizer(&llmtest.Factory{Model: chat}).Summarize(context.Background(), Input{
		Title:          "Calm",
		Content:        "The sea was quiet.",
		ChapterNumber:  2,
		PriorSummaries: []string{"the storm came"},
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out.Summary == "" || meta == nil {
		t.Errorf("out = %+v meta = %+v", out, meta)
	}
}

func TestSummarizeFailures(t *testing.T) {
	respond := func(content string) *llmtest.Factory {
		return &llmtest.Factory{Model: &llmtest.ChatModel{Respond: func(context.Context, string, []*schema.Message) (*schema.Message, error) {
			return llmtest.Assistant(content), nil
		}}}
	}
	tests := []struct {
		name    string
		factory *llmtest.Factory
		content string
	}{
		{"collaborator error", &llmtest.Factory{Err: errors.New("connection reset")}, "text"},
		{"not json", respond("The chapter was about the sea."), "text"},
		{"empty summary", respond(`{"summary":"  ","key_events":["x"]}`), "text"},
		{"empty chapter", respond(outcomeJSON), "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSummarizer(tt.factory).Summarize(context.Background(), Input{Title: "t", Content: tt.content, ChapterNumber: 1})
			if !errors.Is(err, apperrors.ErrSummarizationFailed) {
				t.Errorf("err = %v, want ErrSummarizationFailed", err)
			}
		})
	}
}
