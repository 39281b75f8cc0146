// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、Cache 和外部模型服务
package service

import (
	"context"
	"fmt"
	"strings"

	"neural-chat-server/internal/model"
	"neural-chat-server/internal/repository"
	"neural-chat-server/pkg/util"
)

const (
	// 历史列表中缺少对应消息时的占位文本
	placeholderInput    = "Chat started..."
	placeholderFullText = "No response yet."
)

// ChatStore 会话存储
// CompletionService 通过该接口读写会话
type ChatStore interface {
	AppendOrCreate(ctx context.Context, ownerID, chatID string, message model.Message) (*model.Chat, error)
	AppendReply(ctx context.Context, chatID string, reply model.Message) (*model.Chat, error)
	GetByID(ctx context.Context, chatID, ownerID string) (*model.Chat, error)
}

// ChatService 会话服务
// 每次操作都直接落库，不在内存中缓存消息
type ChatService struct {
	chatRepo *repository.ChatRepository
}

// NewChatService 创建 ChatService 实例
func NewChatService(chatRepo *repository.ChatRepository) *ChatService {
	return &ChatService{chatRepo: chatRepo}
}

// AppendOrCreate 向已有会话追加消息，或创建新会话
// 参数:
//   - ctx: 上下文
//   - ownerID: 当前用户ID
//   - chatID: 会话ID，为空时创建新会话
//   - message: 要追加的消息
//
// 返回:
//   - *model.Chat: 追加后的会话（含全部消息）
//   - error: 会话不存在或不属于 ownerID 时返回 ErrChatNotFound
func (s *ChatService) AppendOrCreate(ctx context.Context, ownerID, chatID string, message model.Message) (*model.Chat, error) {
	if chatID == "" {
		// 标题只在创建时根据第一条消息确定
		title, _ := util.TruncateRunes(message.Content, model.ChatTitleMaxRunes)
		if title == "" {
			title = model.DefaultChatTitle
		}

		chat := &model.Chat{
			ID:       util.NewID(),
			UserID:   ownerID,
			Title:    title,
			Messages: []model.Message{message},
		}
		if err := s.chatRepo.Create(ctx, chat); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
		return s.reload(ctx, chat.ID, ownerID)
	}

	found, err := s.chatRepo.AppendMessage(ctx, chatID, ownerID, &message)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if !found {
		return nil, ErrChatNotFound
	}
	return s.reload(ctx, chatID, ownerID)
}

// AppendReply 向会话追加助手回复
// 回复内容为空时不写库，直接返回当前会话
func (s *ChatService) AppendReply(ctx context.Context, chatID string, reply model.Message) (*model.Chat, error) {
	if strings.TrimSpace(reply.Content) == "" {
		return s.reload(ctx, chatID, "")
	}

	found, err := s.chatRepo.AppendMessage(ctx, chatID, "", &reply)
	if err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}
	if !found {
		return nil, ErrChatNotFound
	}
	return s.reload(ctx, chatID, "")
}

// GetByID 获取会话
// 不存在或不属于 ownerID 时返回 ErrChatNotFound
func (s *ChatService) GetByID(ctx context.Context, chatID, ownerID string) (*model.Chat, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrChatNotFound
	}
	return s.reload(ctx, chatID, ownerID)
}

// ListByOwner 获取用户的会话摘要列表，最近更新的在前
func (s *ChatService) ListByOwner(ctx context.Context, ownerID string) ([]model.ChatSummary, error) {
	chats, err := s.chatRepo.ListByOwnerWithPreviews(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ChatSummary, 0, len(chats))
	for i := range chats {
		summaries = append(summaries, summarize(&chats[i]))
	}
	return summaries, nil
}

func (s *ChatService) reload(ctx context.Context, chatID, ownerID string) (*model.Chat, error) {
	chat, err := s.chatRepo.GetByIDWithMessages(ctx, chatID, ownerID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// summarize 取第一条用户消息和第一条助手回复作为预览
func summarize(chat *model.Chat) model.ChatSummary {
	summary := model.ChatSummary{
		ID:       chat.ID,
		Title:    chat.Title,
		Input:    placeholderInput,
		FullText: placeholderFullText,
		Date:     chat.UpdatedAt,
		ChatLink: "/chat/" + chat.ID,
	}

	var haveInput, haveReply bool
	for _, m := range chat.Messages {
		switch {
		case m.Role == model.MessageRoleUser && !haveInput:
			summary.Input = m.Content
			haveInput = true
		case m.Role == model.MessageRoleAssistant && !haveReply:
			summary.FullText = m.Content
			haveReply = true
		}
		if haveInput && haveReply {
			break
		}
	}
	return summary
}
