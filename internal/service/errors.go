package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// 定义业务错误
var (
	ErrUserExists         = errors.New("username already taken")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	// ErrNotFound 引用的资源不存在，或不属于调用方
	ErrNotFound = errors.New("not found")
	// ErrChatNotFound 会话不存在或不属于调用方
	ErrChatNotFound = fmt.Errorf("chat: %w", ErrNotFound)

	// ErrUnreadableDocument 文档无法提取出文本
	ErrUnreadableDocument = errors.New("could not extract text from document")
	// ErrPayloadTooLarge 文档超过大小上限
	ErrPayloadTooLarge = errors.New("file size exceeds limit")

	// ErrAIUnavailable 未配置模型服务 API Key
	ErrAIUnavailable = errors.New("AI service not configured (missing API key)")
)

// ValidationError 缺少必要输入
// 在访问任何存储或模型服务之前返回
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// UpstreamError 模型服务返回非 2xx 状态或超时
// Body 为服务端原始响应体
type UpstreamError struct {
	Status  int
	Body    string
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return "Mistral API error: request timed out"
	}
	if e.Status == 0 {
		return "Mistral API error: " + e.Body
	}
	return fmt.Sprintf("Mistral API error: %d %s", e.Status, e.Body)
}

// RateLimited 模型服务是否返回了限流
func (e *UpstreamError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// InternalError 未预期的内部错误
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return "internal error"
	}
	return e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
