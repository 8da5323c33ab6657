package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-ebook-api/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen 超长的外部请求 ID 会被替换
const maxRequestIDLen = 128

// RequestID 透传或生成请求 ID，并随异步任务写入消息元数据
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
