package service

import (
	"context"
	"strings"
)

type llmCtxKey int

const (
	workflowKey llmCtxKey = iota
	providerKey
)

const unknownLabel = "unknown"

// WithWorkflow 标记当前 LLM 调用所属的工作流（outline_plan、chapter_generate 等）
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withLabel(ctx, workflowKey, workflow)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withLabel(ctx, providerKey, provider)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return withLabel(withLabel(ctx, workflowKey, workflow), providerKey, provider)
}

// WorkflowFromContext 未标记时返回 "unknown"，用作指标标签
func WorkflowFromContext(ctx context.Context) string {
	return labelFrom(ctx, workflowKey)
}

func ProviderFromContext(ctx context.Context) string {
	return labelFrom(ctx, providerKey)
}

func withLabel(ctx context.Context, key llmCtxKey, v string) context.Context {
	if ctx == nil {
		return nil
	}
	if v = strings.TrimSpace(v); v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func labelFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s
	}
	return unknownLabel
}
