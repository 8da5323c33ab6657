package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CORS 跨域中间件；未配置来源时允许任意来源但不携带凭据
func CORS(cfg CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: cfg.AllowedMethods,
		AllowHeaders: cfg.AllowedHeaders,
		// SSE 客户端需要读取生成 ID
		ExposeHeaders: []string{RequestIDHeader, TraceIDHeader, "X-Generation-ID", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(conf.AllowMethods) == 0 {
		conf.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(conf.AllowHeaders) == 0 {
		conf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	}

	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cfg.AllowedOrigins
		conf.AllowCredentials = true
	}
	return cors.New(conf)
}
