package eino

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var registerOnce sync.Once

// Init 把 LLM 指标回调挂到 eino 全局 handler 上，重复调用无效果
func Init() {
	registerOnce.Do(func() {
		einocallbacks.AppendGlobalHandlers(
			cbtemplate.NewHandlerHelper().ChatModel(newChatModelCallbackHandler()).Handler(),
		)
	})
}
