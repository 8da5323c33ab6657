package node

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型输出中取出第一个能完整解码的 JSON 对象或数组。
// 前后的说明文字、代码围栏会被忽略；找不到时返回去空白后的原文。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		if v, ok := decodeFirstValue(raw[i:]); ok {
			return v
		}
	}

	// 残缺输出：退回到首尾括号之间
	if start := strings.IndexAny(raw, "{["); start >= 0 {
		if end := strings.LastIndexAny(raw, "}]"); end > start {
			return raw[start : end+1]
		}
	}
	return raw
}

func decodeFirstValue(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var msg json.RawMessage
	if err := dec.Decode(&msg); err != nil {
		return "", false
	}
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || (msg[0] != '{' && msg[0] != '[') {
		return "", false
	}
	return string(msg), true
}
