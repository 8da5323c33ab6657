package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-ebook-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

const defaultStreamMaxLen = 100000

// Producer 以 XADD 写入任务，MAXLEN ~ 截断历史
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 消息整体编码为 JSON 放入 data 字段
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(stream), "publish_failed").Inc()
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(stream), "published").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishGeneration 消息 ID 取 generation_id，便于按生成排查
func (p *Producer) PublishGeneration(ctx context.Context, job *GenerationJobMessage) (string, error) {
	msg, err := NewMessage(job.GenerationID, MessageTypeGenerate, job.UserID, job.GenerationID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata(MetaRequestID, job.RequestID)
	msg.SetMetadata(MetaTraceID, job.TraceID)
	return p.Publish(ctx, StreamEbookGenerate, msg)
}

// GenerationJobMessage 异步生成任务载荷，字段与流式请求一致
type GenerationJobMessage struct {
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	SourceText   string `json:"source_text"`
	ChapterCount int    `json:"chapter_count"`
	Format       string `json:"format,omitempty"`
	Theme        string `json:"theme,omitempty"`
	WithImages   bool   `json:"with_images"`
	RequestID    string `json:"request_id,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}
