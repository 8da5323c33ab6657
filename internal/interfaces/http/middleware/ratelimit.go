package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"z-ebook-api/internal/interfaces/http/dto"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
)

type RateLimitConfig struct {
	Enabled bool
	// Limit 每个用户在 Window 内允许发起的生成次数
	Limit    int
	Window   time.Duration
	Endpoint string
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 由用户与入口名构造限流键
type KeyFunc func(userID, endpoint string) string

// RateLimit 按用户限制生成次数。限流器出错时放行。
func RateLimit(cfg RateLimitConfig, limiter RateLimiter, key KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil || cfg.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	retryAfter := strconv.Itoa(int(window / time.Second))
	rejected := apperrors.ErrTooManyRequests.WithDetail("generation limit reached, please try again later")

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := c.GetString("user_id")
		if userID == "" {
			userID = AnonymousUserID
		}

		allowed, err := limiter.Allow(ctx, key(userID, cfg.Endpoint), cfg.Limit, window)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable, allowing request", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			dto.Abort(c, rejected)
			return
		}
		c.Next()
	}
}
