package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"neural-chat-server/internal/config"
	"neural-chat-server/internal/metrics"
)

// chatCompletionsPath Mistral 对话补全接口
const chatCompletionsPath = "/v1/chat/completions"

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 64 << 10

// CompletionProvider 模型服务
type CompletionProvider interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// AIService 模型服务客户端
// 启动时根据配置构建一次，之后只读，可被多个请求并发使用
type AIService struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewAIService 创建 AIService 实例
func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatCompletionResponse 只解析需要的字段
// content 可能缺失、为 null 或不是字符串
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete 发送单条用户消息，等待完整回复
// 只尝试一次，不做重试
// 参数:
//   - ctx: 上下文
//   - model: 模型名称
//   - prompt: 完整提示词，作为唯一一条 user 消息
//
// 返回:
//   - string: choices[0].message.content，缺失时为空字符串
//   - error: 非 2xx 或超时返回 *UpstreamError
func (s *AIService) Complete(ctx context.Context, model, prompt string) (string, error) {
	if s.apiKey == "" {
		return "", ErrAIUnavailable
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		metrics.ObserveProvider(model, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &UpstreamError{Timeout: true}
		}
		// 连接失败等传输层错误没有状态码
		return "", &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveProvider(model, fmt.Sprint(resp.StatusCode), time.Since(start))
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveProvider(model, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &UpstreamError{Timeout: true}
		}
		return "", fmt.Errorf("read AI response: %w", err)
	}
	metrics.ObserveProvider(model, fmt.Sprint(resp.StatusCode), time.Since(start))

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	var content string
	if err := json.Unmarshal(parsed.Choices[0].Message.Content, &content); err != nil {
		return "", nil
	}
	return content, nil
}
