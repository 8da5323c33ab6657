package router

import (
	"github.com/gin-gonic/gin"

	"z-ebook-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由；limit 只作用于发起生成的入口
func RegisterV1Routes(v1 *gin.RouterGroup, gen *handler.GenerationHandler, limit gin.HandlerFunc) {
	generations := v1.Group("/generations")
	{
		generations.POST("/stream", limit, gen.StreamSSE) // SSE
		generations.GET("/ws", limit, gen.StreamWS)       // WebSocket
		generations.POST("", limit, gen.Enqueue)

		generations.GET("", gen.List)
		generations.GET("/:id", gen.Get)
		generations.GET("/:id/memory", gen.Memory)
	}
}
