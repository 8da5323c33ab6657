package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"z-ebook-api/internal/workflow/llmtest"
	wfmodel "z-ebook-api/internal/workflow/model"
)

func TestOutlineChainUsesThemedTemplate(t *testing.T) {
	tests := []struct {
		name     string
		theme    string
		contains string
	}{
		{name: "plain", theme: "", contains: "exactly 4 chapters"},
		{name: "themed", theme: "first-love", contains: `theme "first-love"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.ChatModel{Respond: func(_ context.Context, _ string, _ []*schema.Message) (*schema.Message, error) {
				return llmtest.Assistant(`{"book_title":"x"}`), nil
			}}
			c := NewOutlineChain(&llmtest.Factory{Model: fake})

			out, err := c.Invoke(context.Background(), &wfmodel.OutlineGenerateInput{
				SourceText:   "A fox learns to fly.",
				ChapterCount: 4,
				StoryFormat:  "novella",
				Theme:        tt.theme,
			})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if out.Content != `{"book_title":"x"}` {
				t.Errorf("content = %q", out.Content)
			}

			calls := fake.CallsFor("outline_plan")
			if len(calls) != 1 {
				t.Fatalf("outline calls = %d, want 1", len(calls))
			}
			user := llmtest.UserText(calls[0].Messages)
			if !strings.Contains(user, tt.contains) {
				t.Errorf("user prompt missing %q:\n%s", tt.contains, user)
			}
			if !strings.Contains(user, "A fox learns to fly.") {
				t.Errorf("user prompt missing source text")
			}
			if !strings.Contains(user, `"book_title"`) {
				t.Errorf("escaped json braces not rendered:\n%s", user)
			}
		})
	}
}

func TestOutlineChainFallsBackWhenResponseFormatRejected(t *testing.T) {
	attempts := 0
	fake := &llmtest.ChatModel{Respond: func(_ context.Context, _ string, _ []*schema.Message) (*schema.Message, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("400: unknown parameter response_format")
		}
		return llmtest.Assistant(`{}`), nil
	}}
	c := NewOutlineChain(&llmtest.Factory{Model: fake})

	if _, err := c.Invoke(context.Background(), &wfmodel.OutlineGenerateInput{SourceText: "s", ChapterCount: 1}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[1].Options >= calls[0].Options {
		t.Errorf("retry should drop response_format option: %d then %d", calls[0].Options, calls[1].Options)
	}
}

func TestOutlineChainValidatesInput(t *testing.T) {
	c := NewOutlineChain(&llmtest.Factory{Model: &llmtest.ChatModel{}})
	if _, err := c.Invoke(context.Background(), &wfmodel.OutlineGenerateInput{SourceText: " ", ChapterCount: 1}); err == nil {
		t.Error("expected error for empty source text")
	}
	if _, err := c.Invoke(context.Background(), &wfmodel.OutlineGenerateInput{SourceText: "s", ChapterCount: 0}); err == nil {
		t.Error("expected error for zero chapters")
	}
}

func TestChapterChainRendersContext(t *testing.T) {
	fake := &llmtest.ChatModel{Respond: func(_ context.Context, _ string, _ []*schema.Message) (*schema.Message, error) {
		return llmtest.Assistant("Once upon a time."), nil
	}}
	c := NewChapterChain(&llmtest.Factory{Model: fake})

	out, err := c.Invoke(context.Background(), &wfmodel.ChapterGenerateInput{
		ChapterNumber: 2,
		ChapterTitle:  "The Storm",
		StoryContext:  "STORY CONTEXT FOR CHAPTER 2:",
		StoryFormat:   "short-story",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Content != "Once upon a time." {
		t.Errorf("content = %q", out.Content)
	}
	user := llmtest.UserText(fake.CallsFor("chapter_generate")[0].Messages)
	for _, want := range []string{"STORY CONTEXT FOR CHAPTER 2:", `CHAPTER TO WRITE: Chapter 2: "The Storm"`, "Format: short-story", "800-1200 words"} {
		if !strings.Contains(user, want) {
			t.Errorf("chapter prompt missing %q", want)
		}
	}
}

func TestSummaryChainIncludesPreviousSummaries(t *testing.T) {
	fake := &llmtest.ChatModel{Respond: func(_ context.Context, _ string, _ []*schema.Message) (*schema.Message, error) {
		return llmtest.Assistant(`{"summary":"s"}`), nil
	}}
	c := NewSummaryChain(&llmtest.Factory{Model: fake})

	_, err := c.Invoke(context.Background(), &wfmodel.SummaryGenerateInput{
		ChapterNumber:     3,
		ChapterTitle:      "End",
		ChapterContent:    "They went home.",
		PreviousSummaries: []string{"first", "second"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	user := llmtest.UserText(fake.CallsFor("chapter_summary")[0].Messages)
	for _, want := range []string{"Previous chapter summaries:", "Chapter 1: first", "Chapter 2: second", "They went home."} {
		if !strings.Contains(user, want) {
			t.Errorf("summary prompt missing %q", want)
		}
	}
}

func TestBuildPreviousSummariesBlockEmpty(t *testing.T) {
	if got := buildPreviousSummariesBlock(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := buildPreviousSummariesBlock([]string{" "}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
