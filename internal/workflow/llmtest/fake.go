// Package llmtest 提供测试用的 ChatModel 替身
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-ebook-api/internal/domain/service"
)

// RespondFunc 根据工作流名称与消息返回模型输出
type RespondFunc func(ctx context.Context, workflow string, msgs []*schema.Message) (*schema.Message, error)

// Call 记录一次模型调用
type Call struct {
	Workflow string
	Messages []*schema.Message
	Options  int
}

// ChatModel 脚本化的 model.BaseChatModel
type ChatModel struct {
	Respond RespondFunc

	mu    sync.Mutex
	calls []Call
}

// Generate 实现 model.BaseChatModel
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	workflow := llmctx.WorkflowFromContext(ctx)
	m.mu.Lock()
	m.calls = append(m.calls, Call{Workflow: workflow, Messages: input, Options: len(opts)})
	m.mu.Unlock()
	if m.Respond == nil {
		return nil, fmt.Errorf("no response scripted for %s", workflow)
	}
	return m.Respond(ctx, workflow, input)
}

// Stream 实现 model.BaseChatModel，将完整输出作为单个分片返回
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls 返回调用记录副本
func (m *ChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsFor 返回指定工作流的调用记录
func (m *ChatModel) CallsFor(workflow string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Workflow == workflow {
			out = append(out, c)
		}
	}
	return out
}

// Factory 始终返回同一个 ChatModel 的 port.ChatModelFactory
type Factory struct {
	Model model.BaseChatModel
	Err   error
}

// Get 实现 port.ChatModelFactory
func (f *Factory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Model, nil
}

// Assistant 构造助手消息
func Assistant(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// UserText 返回消息列表中最后一条用户消息的内容
func UserText(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}
