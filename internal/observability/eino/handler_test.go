package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-ebook-api/internal/domain/service"
)

func TestChatModelCallbackCarriesModelToError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := llmctx.WithWorkflowProvider(context.Background(), "chapter_generate", "openai")

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "gpt-4o-mini"}})
	c := callFrom(ctx)
	if c.model != "gpt-4o-mini" || c.workflow != "chapter_generate" || c.provider != "openai" {
		t.Fatalf("call = %+v", c)
	}
	if c.start.IsZero() {
		t.Fatal("start time not recorded")
	}

	// 不应 panic
	h.OnError(ctx, nil, errors.New("upstream 500"))
}

func TestChatModelCallbackOnEnd(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := h.OnStart(context.Background(), nil, nil)
	out := &model.CallbackOutput{
		Message:    &schema.Message{Role: schema.Assistant, Content: "ok"},
		TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
	h.OnEnd(ctx, nil, out)
}

func TestCallWithoutStart(t *testing.T) {
	c := callFrom(context.Background())
	if c.workflow != "unknown" || c.provider != "unknown" {
		t.Errorf("call = %+v", c)
	}
	if got := c.observe("error"); got != 0 {
		t.Errorf("observe without start = %v, want 0", got)
	}
}

func TestModelNameHelpers(t *testing.T) {
	if modelNameFromInput(nil) != "" || modelNameFromOutput(nil) != "" {
		t.Error("nil callbacks should yield empty model")
	}
	if got := modelNameFromOutput(&model.CallbackOutput{Config: &model.Config{Model: "m"}}); got != "m" {
		t.Errorf("modelNameFromOutput = %q", got)
	}
}
