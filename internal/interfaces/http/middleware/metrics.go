package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"z-ebook-api/pkg/metrics"
)

// Metrics 记录请求数与耗时。路由模板作 path 标签，未匹配路由归入 unmatched。
// 流式接口的耗时覆盖整次生成。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start).Seconds()
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed)
	}
}
