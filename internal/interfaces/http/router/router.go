// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"z-ebook-api/internal/config"
	"z-ebook-api/internal/infrastructure/persistence/redis"
	"z-ebook-api/internal/interfaces/http/handler"
	"z-ebook-api/internal/interfaces/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	engine  *gin.Engine
	cfg     *config.Config
	health  *handler.HealthHandler
	gen     *handler.GenerationHandler
	limiter middleware.RateLimiter
}

// New 创建路由器；limiter 为空时不限流
func New(cfg *config.Config, health *handler.HealthHandler, gen *handler.GenerationHandler, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:  gin.New(),
		cfg:     cfg,
		health:  health,
		gen:     gen,
		limiter: limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health.Health)
	r.engine.GET("/health/ready", r.health.Ready)
	r.engine.GET("/health/live", r.health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	v1.Use(middleware.Auth(middleware.AuthConfig{
		Secret:   r.cfg.Security.JWT.Secret,
		Issuer:   r.cfg.Security.JWT.Issuer,
		Required: r.cfg.Security.JWT.Required,
	}))

	RegisterV1Routes(v1, r.gen, middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:  r.cfg.Security.RateLimit.Enabled,
		Limit:    r.cfg.Security.RateLimit.GenerationsPerHour,
		Endpoint: "generations",
	}, r.limiter, redis.BuildUserRateLimitKey))
}
