package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"z-ebook-api/internal/interfaces/http/dto"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
)

// Recovery 捕获 panic。SSE/WebSocket 已经开始输出时只能中断连接。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered", fmt.Errorf("panic: %v", r),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			dto.Abort(c, apperrors.ErrInternalError)
		}()
		c.Next()
	}
}
