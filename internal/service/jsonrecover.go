package service

import (
	"encoding/json"
	"strings"

	"neural-chat-server/pkg/util"
)

// degradedNotice 结构化失败时放在 raw_text 中的提示
const degradedNotice = "AI could not structure this document automatically."

// RecoverJSON 从模型输出中尽力恢复 JSON
// 先解析第一个 '{' 到最后一个 '}' 之间的内容（含括号），失败再解析整段原文
// 返回:
//   - json.RawMessage: 恢复出的 JSON
//   - bool: 是否成功
func RecoverJSON(output string) (json.RawMessage, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start >= 0 && end > start {
		candidate := strings.TrimSpace(output[start : end+1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}

	raw := strings.TrimSpace(output)
	if raw != "" && json.Valid([]byte(raw)) {
		return json.RawMessage(raw), true
	}
	return nil, false
}

// fallbackStructured 构造降级结果：提示文本 + 原文前 summaryChars 个字符
func fallbackStructured(rawText string, summaryChars int) json.RawMessage {
	summary, _ := util.TruncateRunes(rawText, summaryChars)
	data, _ := json.Marshal(struct {
		RawText string `json:"raw_text"`
		Summary string `json:"summary"`
	}{
		RawText: degradedNotice,
		Summary: summary + "...",
	})
	return data
}
