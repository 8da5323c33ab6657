// Package utils 通用工具
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims sub 与 user_id 均为用户 ID，缺一时以另一个补齐
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTManager HS256 签发与校验
type JWTManager struct {
	key    []byte
	issuer string
	parser *jwt.Parser
}

func NewJWTManager(secret, issuer string) *JWTManager {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTManager{key: []byte(secret), issuer: issuer, parser: jwt.NewParser(opts...)}
}

// GenerateToken 签发有效期为 ttl 的令牌，ttl 为负时得到已过期令牌
func (m *JWTManager) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(m.key)
}

// ParseToken 过期返回 ErrExpiredToken，其余失败统一为 ErrInvalidToken
func (m *JWTManager) ParseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return m.key, nil })
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
