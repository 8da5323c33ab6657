// Package prompt 内嵌的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptOutlinePlanV1       PromptID = "outline_plan_v1"
	PromptOutlinePlanThemedV1 PromptID = "outline_plan_themed_v1"
	PromptChapterMemoryV1     PromptID = "chapter_memory_v1"
	PromptChapterSummaryV1    PromptID = "chapter_summary_v1"
)

var knownPrompts = map[PromptID]struct{}{
	PromptOutlinePlanV1:       {},
	PromptOutlinePlanThemedV1: {},
	PromptChapterMemoryV1:     {},
	PromptChapterSummaryV1:    {},
}

// Registry 按需解析模板并缓存，可并发使用
type Registry struct {
	mu        sync.Mutex
	templates map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[PromptID]einoprompt.ChatTemplate, len(knownPrompts))}
}

// ChatTemplate 返回 system + user 两段 FString 模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if _, ok := knownPrompts[id]; !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.templates[id]; ok {
		return tpl, nil
	}

	var parts [2]string
	for i, role := range []string{"system", "user"} {
		text, err := load(id, role)
		if err != nil {
			return nil, err
		}
		parts[i] = text
	}

	tpl := einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(parts[0]),
		schema.UserMessage(parts[1]),
	)
	r.templates[id] = tpl
	return tpl, nil
}

func load(id PromptID, role string) (string, error) {
	name := path.Join("templates", fmt.Sprintf("%s.%s.txt", id, role))
	b, err := templatesFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}
