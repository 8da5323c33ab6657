// Package middleware gin 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"z-ebook-api/internal/interfaces/http/dto"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/utils"
)

// AnonymousUserID 未携带令牌时的用户标识
const AnonymousUserID = "anonymous"

type AuthConfig struct {
	Secret string
	Issuer string
	// Required 为 false 时允许匿名访问，但携带的令牌仍需有效
	Required bool
}

// Auth 解析 Bearer 令牌，把 user_id 写入 gin.Context 与日志上下文
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			if cfg.Required {
				dto.Abort(c, apperrors.ErrTokenMissing)
				return
			}
			setUser(c, AnonymousUserID)
			c.Next()
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			dto.Abort(c, apperrors.ErrTokenInvalid.WithDetail("expected Bearer token"))
			return
		}

		claims, err := jwtManager.ParseToken(token)
		switch {
		case errors.Is(err, utils.ErrExpiredToken):
			dto.Abort(c, apperrors.ErrTokenExpired)
			return
		case err != nil:
			dto.Abort(c, apperrors.ErrTokenInvalid)
			return
		}

		setUser(c, claims.UserID)
		c.Next()
	}
}

func setUser(c *gin.Context, userID string) {
	c.Set("user_id", userID)
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.UserIDKey, userID))
}
