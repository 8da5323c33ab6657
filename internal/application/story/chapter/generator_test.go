package chapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"z-ebook-api/internal/workflow/llmtest"
	apperrors "z-ebook-api/pkg/errors"
)

func validInput() Input {
	return Input{
		ChapterNumber: 2,
		ChapterTitle:  "Calm",
		Context:       "STORY CONTEXT FOR CHAPTER 2:\n",
		SourceText:    "A girl and a lighthouse.",
		Format:        "short-story",
	}
}

func TestGenerate(t *testing.T) {
	chat := &llmtest.ChatModel{Respond: func(_ context.Context, workflow string, msgs []*schema.Message) (*schema.Message, error) {
		if workflow != "chapter_generate" {
			t.Errorf("workflow = %q", workflow)
		}
		if !strings.Contains(llmtest.UserText(msgs), "STORY CONTEXT FOR CHAPTER 2:") {
			t.Error("prompt lacks story context")
		}
		return llmtest.Assistant("  The sea was quiet that morning.  "), nil
	}}

	out, meta, err := NewGenerator(&llmtest.Factory{Model: chat}).Generate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Content != "The sea was quiet that morning." || out.WordCount != 6 || out.Title != "Calm" {
		t.Errorf("output = %+v", out)
	}
	if meta == nil {
		t.Error("missing usage meta")
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		factory *llmtest.Factory
		in      Input
	}{
		{"collaborator error", &llmtest.Factory{Err: errors.New("timeout")}, validInput()},
		{"empty content", &llmtest.Factory{Model: &llmtest.ChatModel{Respond: func(context.Context, string, []*schema.Message) (*schema.Message, error) {
			return llmtest.Assistant("   "), nil
		}}}, validInput()},
		{"missing context", &llmtest.Factory{Model: &llmtest.ChatModel{}}, Input{ChapterNumber: 1, ChapterTitle: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewGenerator(tt.factory).Generate(context.Background(), tt.in)
			if !errors.Is(err, apperrors.ErrChapterGenerationFailed) {
				t.Errorf("err = %v, want ErrChapterGenerationFailed", err)
			}
		})
	}
}
