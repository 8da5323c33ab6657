package node

import "strings"

// responseFormatMarkers 供应商拒绝结构化输出参数时错误信息里的特征片段
var responseFormatMarkers = []string{
	"response_format",
	"response_schema",
	"json_schema",
	"failed to parse",
}

// IsResponseFormatUnsupportedError 判断错误是否源于模型不支持 response_format，
// 调用方据此去掉结构化输出参数重试一次。
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range responseFormatMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	if !strings.Contains(msg, "response") {
		return false
	}
	return strings.Contains(msg, "unknown parameter") || strings.Contains(msg, "invalid")
}
