package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"neural-chat-server/internal/model"
)

const (
	notSpecified   = "Not specified."
	defaultTrait   = "Act as a helpful assistant."
	documentHeader = "\n---\nADDITIONAL CONTEXT FROM UPLOADED DOCUMENT:\n"
)

// BuildPrompt 把用户问题和记忆档案合成最终发送给模型的提示词
// useMemory 为 false 时原样返回问题
// 相同的 (question, profile) 总是得到字节级相同的结果
func BuildPrompt(question string, profile *model.Memory, useMemory bool) string {
	if !useMemory {
		return question
	}
	if profile == nil {
		profile = &model.Memory{}
	}

	var b strings.Builder
	b.WriteString("Based on the following information about me, please answer my question.\n")
	b.WriteString("---\n")
	b.WriteString("USER PROFILE:\n")
	b.WriteString("- What I do: " + orDefault(profile.RoleText, notSpecified) + "\n")
	b.WriteString("- Important things for you to know: " + orDefault(profile.KnowledgeText, notSpecified) + "\n")
	b.WriteString("- The traits you should adopt: " + orDefault(profile.TraitText, defaultTrait) + "\n")
	b.WriteString(documentContext(profile))
	b.WriteString("\n---\n")
	b.WriteString("My question is: " + question)
	return b.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// documentContext 结构化数据以 2 空格缩进的 JSON 输出
// 不存在或无法解析时返回空字符串
func documentContext(profile *model.Memory) string {
	if !profile.HasStructuredData() {
		return ""
	}
	indented, err := indentJSON(profile.StructuredData)
	if err != nil {
		return ""
	}
	return documentHeader + indented
}

// indentJSON 重新编码为缩进格式，键顺序保持原样，数字不做精度转换
func indentJSON(raw []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}
