// Package messaging Redis Stream 上的异步生成任务队列
package messaging

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// StreamEbookGenerate 生成任务流
	StreamEbookGenerate Stream = "stream:ebook:generate"
	// ConsumerGroupEbookWorkers job-worker 默认消费者组
	ConsumerGroupEbookWorkers ConsumerGroup = "ebook-workers"
	// MessageTypeGenerate 生成任务
	MessageTypeGenerate = "ebook_generate"
)

// 元数据键，消费端据此恢复日志上下文
const (
	MetaRequestID = "request_id"
	MetaTraceID   = "trace_id"
)

type Stream string

// DLQStream 超过重试上限的消息转入 dlq:<stream>
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

type ConsumerGroup string

// Message 写入 Stream data 字段的信封
type Message struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	UserID       string            `json:"user_id"`
	GenerationID string            `json:"generation_id"`
	Payload      json.RawMessage   `json:"payload"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

func NewMessage(id, msgType, userID, generationID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:           id,
		Type:         msgType,
		UserID:       userID,
		GenerationID: generationID,
		Payload:      raw,
		Metadata:     map[string]string{},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SetMetadata 空值不写入
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	m.Metadata[key] = value
}

func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// BackoffConfig 重投前的指数退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}
}

// CalculateBackoff Initial * Multiplier^retryCount，不超过 Max
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return min(c.Initial, c.Max)
	}
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(retryCount))
	if d >= float64(c.Max) || math.IsInf(d, 0) {
		return c.Max
	}
	return time.Duration(d)
}
