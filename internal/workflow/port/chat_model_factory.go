// Package port 工作流层依赖的外部能力
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名取 ChatModel，名称为空时使用默认提供商
type ChatModelFactory interface {
	Get(ctx context.Context, provider string) (model.BaseChatModel, error)
}
