package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// allowScript 在一次往返内完成清理、计数与登记。
// KEYS[1]=限流键 ARGV: now_ms, window_ms, limit, member
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RateLimiter 按用户统计生成次数的滑动窗口限流器
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow 窗口内已登记次数未达 limit 时登记本次并放行
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)

	now := l.now().UnixMilli()
	// 同一毫秒内的多次请求需要不同的 member
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())
	res, err := allowScript.Run(ctx, l.client.rdb, []string{key}, now, window.Milliseconds(), limit, member).Int()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := res == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))
	return allowed, nil
}

// BuildUserRateLimitKey 构建用户限流键
func BuildUserRateLimitKey(userID, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, endpoint)
}
