package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"

	"neural-chat-server/internal/config"
	"neural-chat-server/internal/metrics"
	"neural-chat-server/internal/model"
	"neural-chat-server/pkg/logger"
)

// CompletionState 一次对话请求的处理状态
type CompletionState string

const (
	StateReceived              CompletionState = "RECEIVED"
	StateRejected              CompletionState = "REJECTED"
	StatePersistingUserMessage CompletionState = "PERSISTING_USER_MESSAGE"
	StateFailedNotFound        CompletionState = "FAILED_NOT_FOUND"
	StateRequestingCompletion  CompletionState = "REQUESTING_COMPLETION"
	StateFailedUpstream        CompletionState = "FAILED_UPSTREAM"
	StateParsingResponse       CompletionState = "PARSING_RESPONSE"
	StatePersistingReply       CompletionState = "PERSISTING_REPLY"
	StateCompleted             CompletionState = "COMPLETED"
	StateFailedInternal        CompletionState = "FAILED_INTERNAL"
)

// Terminal 是否为终态
func (s CompletionState) Terminal() bool {
	switch s {
	case StateRejected, StateFailedNotFound, StateFailedUpstream, StateCompleted, StateFailedInternal:
		return true
	}
	return false
}

// ChatNotifier 会话变更通知
// 实现方不得阻塞调用方
type ChatNotifier interface {
	NotifyChatUpdated(ownerID string, chat *model.Chat)
}

// MessageInput 客户端提交的消息
type MessageInput struct {
	Role    string `json:"role" validate:"omitempty,eq=user"`
	Content string `json:"content" validate:"notblank"`
}

// CompletionRequest 对话请求
type CompletionRequest struct {
	OwnerID   string       `json:"userId" validate:"notblank"`
	ChatID    string       `json:"chatId"`
	Message   MessageInput `json:"message"`
	UseMemory bool         `json:"useMemory"`
}

// CompletionResult 对话处理结果
// FAILED_UPSTREAM 时 Chat 为用户消息写入后的会话
type CompletionResult struct {
	State CompletionState `json:"state"`
	Chat  *model.Chat     `json:"chat,omitempty"`
}

// CompletionService 对话编排服务
// 负责：写入用户消息 -> 构建提示词 -> 调用模型 -> 写入回复
type CompletionService struct {
	chats     ChatStore
	memories  MemoryStore
	provider  CompletionProvider
	notifier  ChatNotifier
	chatModel string
	validate  *validator.Validate
	log       *logger.Logger
}

// NewCompletionService 创建 CompletionService 实例
// notifier 可以为 nil
func NewCompletionService(
	chats ChatStore,
	memories MemoryStore,
	provider CompletionProvider,
	notifier ChatNotifier,
	aiCfg config.AIConfig,
	log *logger.Logger,
) *CompletionService {
	return &CompletionService{
		chats:     chats,
		memories:  memories,
		provider:  provider,
		notifier:  notifier,
		chatModel: aiCfg.ChatModel,
		validate:  newValidator(),
		log:       log,
	}
}

// settle 保证返回给调用方的结果处于终态
// 停在中间状态的请求按 FAILED_INTERNAL 处理
func (s *CompletionService) settle(result *CompletionResult, err error) error {
	if result.State.Terminal() {
		return err
	}
	stopped := result.State
	s.log.Error("completion stopped in non-terminal state", "state", stopped, "error", err)
	result.State = StateFailedInternal
	if err == nil {
		err = &InternalError{Err: fmt.Errorf("completion stopped in state %s", stopped)}
	}
	return err
}

// Complete 处理一次对话请求
// 参数:
//   - ctx: 上下文
//   - req: 对话请求，OwnerID 来自认证中间件
//
// 返回:
//   - *CompletionResult: 始终非 nil，State 为终态
//   - error: 非 COMPLETED 时的错误，类型见 errors.go
func (s *CompletionService) Complete(ctx context.Context, req *CompletionRequest) (result *CompletionResult, err error) {
	result = &CompletionResult{State: StateReceived}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("completion panicked", "state", result.State, "panic", r, "stack", string(debug.Stack()))
			result = &CompletionResult{State: StateFailedInternal, Chat: result.Chat}
			err = &InternalError{Err: fmt.Errorf("%v", r)}
		}
		err = s.settle(result, err)
		metrics.IncCompletion(string(result.State))
	}()

	if req == nil {
		req = &CompletionRequest{}
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.ChatID = strings.TrimSpace(req.ChatID)

	// RECEIVED: 校验必填项，不访问任何存储
	if verr := s.validateRequest(req); verr != nil {
		result.State = StateRejected
		return result, verr
	}

	prompt, err := s.buildPrompt(ctx, req)
	if err != nil {
		result.State = StateFailedInternal
		return result, &InternalError{Err: err}
	}
	if strings.TrimSpace(prompt) == "" {
		result.State = StateRejected
		return result, &ValidationError{Fields: []string{"prompt"}}
	}

	// PERSISTING_USER_MESSAGE: 先落库，保证模型调用失败时用户消息不丢失
	result.State = StatePersistingUserMessage
	chat, err := s.chats.AppendOrCreate(ctx, req.OwnerID, req.ChatID, model.Message{
		Role:    model.MessageRoleUser,
		Content: req.Message.Content,
	})
	if err != nil {
		result.State = StateFailedNotFound
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("persist user message failed", "user_id", req.OwnerID, "chat_id", req.ChatID, "error", err)
		}
		return result, ErrChatNotFound
	}
	result.Chat = chat
	s.notify(req.OwnerID, chat)

	// REQUESTING_COMPLETION: 只调用一次，不重试
	result.State = StateRequestingCompletion
	output, err := s.provider.Complete(ctx, s.chatModel, prompt)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			result.State = StateFailedUpstream
			s.log.Warn("completion provider failed",
				"chat_id", chat.ID, "status", upstream.Status, "timeout", upstream.Timeout)
			return result, upstream
		}
		result.State = StateFailedInternal
		return result, &InternalError{Err: err}
	}

	// PARSING_RESPONSE
	result.State = StateParsingResponse
	reply := strings.TrimSpace(output)
	if reply == "" {
		s.log.Info("empty completion, reply not stored", "chat_id", chat.ID)
		result.State = StateCompleted
		return result, nil
	}

	// PERSISTING_REPLY
	result.State = StatePersistingReply
	updated, err := s.chats.AppendReply(ctx, chat.ID, model.Message{
		Role:    model.MessageRoleAssistant,
		Content: reply,
	})
	if err != nil {
		result.State = StateFailedInternal
		return result, &InternalError{Err: err}
	}
	result.Chat = updated
	s.notify(req.OwnerID, updated)

	result.State = StateCompleted
	return result, nil
}

// validateRequest 返回缺失或非法的字段名
func (s *CompletionService) validateRequest(req *CompletionRequest) *ValidationError {
	return validateStruct(s.validate, req)
}

func (s *CompletionService) buildPrompt(ctx context.Context, req *CompletionRequest) (string, error) {
	if !req.UseMemory {
		return BuildPrompt(req.Message.Content, nil, false), nil
	}
	profile, err := s.memories.Get(ctx, req.OwnerID)
	if err != nil {
		return "", fmt.Errorf("load memory: %w", err)
	}
	return BuildPrompt(req.Message.Content, profile, true), nil
}

func (s *CompletionService) notify(ownerID string, chat *model.Chat) {
	if s.notifier == nil || chat == nil {
		return
	}
	s.notifier.NotifyChatUpdated(ownerID, chat)
}
