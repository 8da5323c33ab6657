// Package logger 基于 slog 的结构化日志，字段从 context 中提取
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// ContextKey 用于从 context 中提取值的键类型
type ContextKey string

// 预定义的 context 键
const (
	TraceIDKey      ContextKey = "trace_id"
	SpanIDKey       ContextKey = "span_id"
	RequestIDKey    ContextKey = "request_id"
	UserIDKey       ContextKey = "user_id"
	GenerationIDKey ContextKey = "generation_id"
	ChapterKey      ContextKey = "chapter"
)

// contextKeys 按输出顺序排列
var contextKeys = []ContextKey{RequestIDKey, UserIDKey, GenerationIDKey, ChapterKey, SpanIDKey}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Init 初始化日志器，format 为 json 或 text
func Init(level string, format string) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	l := slog.New(handler)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 返回默认日志器，未初始化时使用 info/json
func Default() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Init("info", "json")
		return Default()
	}
	return l
}

// FromContext 附带 context 中的请求、用户、生成记录与章节字段。
// trace_id 优先取显式注入的值，其次取当前 OTel span。
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}

	args := make([]any, 0, 2*(len(contextKeys)+1))
	if v := ctx.Value(TraceIDKey); v != nil {
		args = append(args, string(TraceIDKey), v)
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		args = append(args, string(TraceIDKey), sc.TraceID().String())
	}
	for _, k := range contextKeys {
		if v := ctx.Value(k); v != nil {
			args = append(args, string(k), v)
		}
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

// WithContext 将日志字段注入 context
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error err 非空时追加 error 字段
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}

// Fatal 记录错误并退出进程
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
