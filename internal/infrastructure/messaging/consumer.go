package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/metrics"
)

const (
	pendingBatch       = 20
	minReclaimIdle     = 5 * time.Minute
	readErrorPause     = time.Second
	dlqMonitorInterval = time.Minute
)

var errRetriesExhausted = errors.New("message exceeded max retries")

// MessageHandler 返回 error 时消息留在 PEL，按退避重投
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者参数，零值字段使用默认
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return cfg
}

// Consumer 消费者组成员。
// 每轮循环依次处理：本消费者退避到期的失败消息、其他消费者遗留的超时消息、新消息。
type Consumer struct {
	rdb         *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	cancel   context.CancelFunc
}

func NewConsumer(rdb *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		rdb:         rdb,
		cfg:         cfg,
		reclaimIdle: max(minReclaimIdle, 2*cfg.Backoff.Max),
		handlers:    make(map[string]MessageHandler),
	}
}

func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	c.handlers[msgType] = handler
	c.mu.Unlock()
}

// Run 阻塞消费直到 ctx 取消或 Stop
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	err := c.rdb.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.cfg.Group, err)
	}

	logger.Info(ctx, "consumer started",
		"stream", string(c.cfg.Stream),
		"group", string(c.cfg.Group),
		"consumer", c.cfg.ConsumerName,
	)
	c.loop(ctx)
	logger.Info(context.WithoutCancel(ctx), "consumer stopped", "consumer", c.cfg.ConsumerName)
	return nil
}

func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) loop(ctx context.Context) {
	nextReclaim := time.Now()
	for ctx.Err() == nil {
		c.retryDue(ctx)
		if now := time.Now(); !now.Before(nextReclaim) {
			c.reclaimStale(ctx)
			nextReclaim = now.Add(c.cfg.ClaimInterval)
		}

		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{string(c.cfg.Stream), ">"},
			Count:    1,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			logger.Error(ctx, "failed to read from stream", err, "stream", string(c.cfg.Stream))
			sleep(ctx, readErrorPause)
			continue
		}

		for _, s := range res {
			for _, xmsg := range s.Messages {
				c.handle(ctx, xmsg)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// decode 解析 Producer 写入的 data 字段
func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	msg := new(Message)
	if err := json.Unmarshal([]byte(raw), msg); err != nil {
		return nil, fmt.Errorf("unmarshal message %s: %w", xmsg.ID, err)
	}
	return msg, nil
}

// messageContext 恢复生产端的日志关联字段
func messageContext(ctx context.Context, msg *Message) context.Context {
	fields := []struct {
		key   logger.ContextKey
		value string
	}{
		{logger.UserIDKey, msg.UserID},
		{logger.GenerationIDKey, msg.GenerationID},
		{logger.RequestIDKey, msg.GetMetadata(MetaRequestID)},
		{logger.TraceIDKey, msg.GetMetadata(MetaTraceID)},
	}
	for _, f := range fields {
		if f.value != "" {
			ctx = logger.WithContext(ctx, f.key, f.value)
		}
	}
	return ctx
}

func (c *Consumer) count(result string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), result).Inc()
}

func (c *Consumer) handle(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.handle",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		// 无法解析的消息重试也不会成功
		logger.Error(ctx, "invalid message format", err, "message_id", xmsg.ID)
		c.count("invalid")
		c.ack(ctx, xmsg.ID)
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.type", msg.Type),
		attribute.String("generation_id", msg.GenerationID),
	)

	c.mu.RLock()
	h := c.handlers[msg.Type]
	c.mu.RUnlock()
	if h == nil {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := h(ctx, msg); err != nil {
		span.RecordError(err)
		c.count("failed")
		c.onFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.count("processed")
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// onFailure 投递次数达到上限时转入死信队列，否则等待 retryDue 重投
func (c *Consumer) onFailure(ctx context.Context, id string, msg *Message, cause error) {
	deliveries := c.deliveries(ctx, id)
	if deliveries < c.cfg.RetryLimit {
		logger.Error(ctx, "handler failed, message left pending", cause,
			"message_id", id,
			"deliveries", deliveries,
		)
		return
	}
	logger.Error(ctx, "handler failed, moving message to DLQ", cause,
		"message_id", id,
		"deliveries", deliveries,
	)
	c.toDLQ(ctx, msg, cause)
	c.ack(ctx, id)
}

// deliveries XPENDING 中的投递次数
func (c *Consumer) deliveries(ctx context.Context, id string) int {
	p, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(p) == 0 {
		return 0
	}
	return int(p[0].RetryCount)
}

func (c *Consumer) toDLQ(ctx context.Context, msg *Message, cause error) {
	entry, err := json.Marshal(struct {
		OriginalStream string   `json:"original_stream"`
		Data           *Message `json:"data"`
		Error          string   `json:"error"`
		FailedAt       int64    `json:"failed_at"`
	}{string(c.cfg.Stream), msg, cause.Error(), time.Now().Unix()})
	if err == nil {
		err = c.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: c.cfg.Stream.DLQStream(),
			Values: map[string]any{"data": string(entry)},
		}).Err()
	}
	if err != nil {
		logger.Error(ctx, "failed to write DLQ message", err, "message_id", msg.ID)
		return
	}
	c.count("dead_lettered")
}

// retryDue 认领本消费者名下退避期已过的消息并重新处理
func (c *Consumer) retryDue(ctx context.Context) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: c.cfg.ConsumerName,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error(ctx, "failed to query pending messages", err, "stream", string(c.cfg.Stream))
		}
		return
	}

	for _, p := range pending {
		wait := c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle < wait {
			continue
		}
		msgs, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.cfg.Stream),
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			MinIdle:  wait,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.Error(ctx, "failed to claim pending message", err, "message_id", p.ID)
			continue
		}
		c.redeliver(ctx, msgs)
	}
}

// reclaimStale 通过 XAUTOCLAIM 接管其他消费者超时未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  c.reclaimIdle,
		Start:    "0-0",
		Count:    pendingBatch,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			logger.Error(ctx, "failed to auto-claim stale messages", err, "stream", string(c.cfg.Stream))
		}
		return
	}
	c.redeliver(ctx, msgs)
}

// redeliver 认领会增加投递次数，超过上限的直接转入死信队列
func (c *Consumer) redeliver(ctx context.Context, msgs []redis.XMessage) {
	for _, xmsg := range msgs {
		if c.deliveries(ctx, xmsg.ID) <= c.cfg.RetryLimit {
			c.handle(ctx, xmsg)
			continue
		}
		if msg, err := decode(xmsg); err == nil {
			c.toDLQ(ctx, msg, errRetriesExhausted)
		}
		c.ack(ctx, xmsg.ID)
	}
}

// MonitorDLQ 每分钟上报死信队列长度，超过阈值告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	dlq := c.cfg.Stream.DLQStream()
	ticker := time.NewTicker(dlqMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := c.rdb.XLen(ctx, dlq).Result()
		if err != nil {
			continue
		}
		metrics.RedisStreamLag.WithLabelValues(dlq, string(c.cfg.Group)).Set(float64(n))
		if n > alertThreshold {
			logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
		}
	}
}
