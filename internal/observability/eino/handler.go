// Package eino 通过 Eino 全局回调为每次聊天模型调用记录指标与 span
package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	llmctx "z-ebook-api/internal/domain/service"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/metrics"
)

var tracer = otel.Tracer("eino")

// callKey OnStart 写入的调用信息，OnError 拿不到 output 时从这里取模型名
type callKey struct{}

type call struct {
	start    time.Time
	model    string
	workflow string
	provider string
}

func (c call) labels(extra ...string) []string {
	return append([]string{c.workflow, c.provider, c.model}, extra...)
}

func (c call) observe(status string) float64 {
	metrics.LLMCallTotal.WithLabelValues(c.labels(status)...).Inc()
	if c.start.IsZero() {
		return 0
	}
	d := time.Since(c.start).Seconds()
	metrics.LLMCallDuration.WithLabelValues(c.labels()...).Observe(d)
	return d
}

func callFrom(ctx context.Context) call {
	if c, ok := ctx.Value(callKey{}).(call); ok {
		return c
	}
	return call{
		workflow: llmctx.WorkflowFromContext(ctx),
		provider: llmctx.ProviderFromContext(ctx),
	}
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: onStart,
		OnEnd:   onEnd,
		OnError: onError,
	}
}

func onStart(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
	c := call{
		start:    time.Now(),
		model:    modelNameFromInput(input),
		workflow: llmctx.WorkflowFromContext(ctx),
		provider: llmctx.ProviderFromContext(ctx),
	}
	ctx = context.WithValue(ctx, callKey{}, c)

	attrs := []attribute.KeyValue{
		attribute.String("eino.workflow", c.workflow),
		attribute.String("llm.provider", c.provider),
		attribute.String("llm.model", c.model),
	}
	if info != nil {
		attrs = append(attrs, attribute.String("eino.node_name", info.Name), attribute.String("eino.type", info.Type))
	}
	ctx, _ = tracer.Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
	return ctx
}

func onEnd(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
	c := callFrom(ctx)
	if m := modelNameFromOutput(output); m != "" {
		c.model = m
	}
	d := c.observe("success")

	span := trace.SpanFromContext(ctx)
	defer span.End()
	if output == nil || output.TokenUsage == nil {
		return ctx
	}

	u := output.TokenUsage
	metrics.LLMTokensUsed.WithLabelValues(c.labels("prompt")...).Add(float64(u.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.labels("completion")...).Add(float64(u.CompletionTokens))
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", u.PromptTokens),
		attribute.Int("llm.completion_tokens", u.CompletionTokens),
	)
	logger.Debug(ctx, "llm call finished",
		"workflow", c.workflow,
		"model", c.model,
		"prompt_tokens", u.PromptTokens,
		"completion_tokens", u.CompletionTokens,
		"duration_ms", int64(d*1000),
	)
	return ctx
}

func onError(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
	callFrom(ctx).observe("error")

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return ctx
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
