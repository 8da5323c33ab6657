package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/tracer"
)

// TraceIDHeader 响应中回传的 trace ID
const TraceIDHeader = "X-Trace-ID"

// Trace otelgin 入口 span
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把当前 span 的 ID 写入 gin 与日志上下文，需在 Trace 之后注册
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, spanID := tracer.IDs(c.Request.Context())
		if traceID != "" {
			c.Set("trace_id", traceID)
			c.Set("span_id", spanID)
			ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
			c.Request = c.Request.WithContext(ctx)
			c.Header(TraceIDHeader, traceID)
		}
		c.Next()
	}
}
