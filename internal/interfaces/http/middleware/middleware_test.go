package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/who", func(c *gin.Context) {
		ctxUser, _ := c.Request.Context().Value(logger.UserIDKey).(string)
		c.String(http.StatusOK, c.GetString("user_id")+"|"+ctxUser)
	})
	return r
}

func TestAuth(t *testing.T) {
	jwt := utils.NewJWTManager("secret", "z-ebook-api")
	valid, _ := jwt.GenerateToken("user-1", time.Hour)
	expired, _ := jwt.GenerateToken("user-1", -time.Minute)

	tests := []struct {
		name     string
		required bool
		header   string
		status   int
		body     string
	}{
		{"anonymous allowed", false, "", http.StatusOK, "anonymous|anonymous"},
		{"anonymous rejected", true, "", http.StatusUnauthorized, ""},
		{"valid token", true, "Bearer " + valid, http.StatusOK, "user-1|user-1"},
		{"lowercase scheme", false, "bearer " + valid, http.StatusOK, "user-1|user-1"},
		{"expired token", false, "Bearer " + expired, http.StatusUnauthorized, ""},
		{"bad format", false, "Token abc", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(Auth(AuthConfig{Secret: "secret", Issuer: "z-ebook-api", Required: tt.required}))
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

type fakeLimiter struct {
	allowed map[string]int
	limit   int
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	if f.allowed == nil {
		f.allowed = map[string]int{}
	}
	if f.allowed[key] >= limit {
		return false, nil
	}
	f.allowed[key]++
	return true, nil
}

func TestRateLimitPerUser(t *testing.T) {
	limiter := &fakeLimiter{}
	key := func(userID, endpoint string) string { return userID + ":" + endpoint }
	r := newEngine(
		Auth(AuthConfig{Secret: "secret"}),
		RateLimit(RateLimitConfig{Enabled: true, Limit: 2, Window: time.Hour, Endpoint: "generate"}, limiter, key),
	)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
		codes = append(codes, w.Code)
		if i == 2 && w.Header().Get("Retry-After") != "3600" {
			t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if limiter.keys[0] != "anonymous:generate" {
		t.Errorf("key = %q", limiter.keys[0])
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	r := newEngine(RateLimit(RateLimitConfig{Enabled: true, Limit: 1}, limiter, func(u, e string) string { return u }))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := &fakeLimiter{}
	r := newEngine(RateLimit(RateLimitConfig{Enabled: false, Limit: 1}, limiter, func(u, e string) string { return u }))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	if len(limiter.keys) != 0 {
		t.Error("disabled limiter should not be consulted")
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "req-42" || w.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id = %q / %q", w.Body.String(), w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	if w.Body.String() == "" {
		t.Error("request id should be generated")
	}
}

func TestAuthErrorCodes(t *testing.T) {
	jwt := utils.NewJWTManager("secret", "z-ebook-api")
	expired, _ := jwt.GenerateToken("user-1", -time.Minute)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", `"error_code":"2003"`},
		{"expired", "Bearer " + expired, `"error_code":"2001"`},
		{"garbage", "Bearer not-a-jwt", `"error_code":"2002"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(Auth(AuthConfig{Secret: "secret", Issuer: "z-ebook-api", Required: true}))
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), tt.code) {
				t.Errorf("status = %d body = %s, want 401 with %s", w.Code, w.Body.String(), tt.code)
			}
		})
	}
}
