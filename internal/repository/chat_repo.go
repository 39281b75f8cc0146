package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"neural-chat-server/internal/model"
)

// ChatRepository 会话数据访问层
// 会话和消息都在这里读写，保证"追加消息 + 刷新 updated_at"在同一事务内完成
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create 创建新会话，chat.Messages 中的初始消息一并写入
// 参数:
//   - ctx: 上下文
//   - chat: 会话对象，ID 必须已由调用方生成
//
// 返回:
//   - error: 数据库错误
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(chat).Error
}

// AppendMessage 向会话追加一条消息，并刷新会话的 updated_at
// ownerID 为空时不校验所有者（仅供服务内部追加助手回复使用）
// 参数:
//   - ctx: 上下文
//   - chatID: 会话ID
//   - ownerID: 所有者ID
//   - message: 消息对象，ChatID 会被覆盖
//
// 返回:
//   - bool: 会话是否存在且属于 ownerID
//   - error: 数据库错误
func (r *ChatRepository) AppendMessage(ctx context.Context, chatID, ownerID string, message *model.Message) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&model.Chat{}).Where("id = ?", chatID)
		if ownerID != "" {
			query = query.Where("user_id = ?", ownerID)
		}

		result := query.Update("updated_at", time.Now())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// MySQL 在值未变化时 RowsAffected 为 0，需要再确认一次是否存在
			var count int64
			check := tx.Model(&model.Chat{}).Where("id = ?", chatID)
			if ownerID != "" {
				check = check.Where("user_id = ?", ownerID)
			}
			if err := check.Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return nil
			}
		}

		found = true
		message.ID = 0
		message.ChatID = chatID
		return tx.Create(message).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// GetByIDWithMessages 获取会话及其全部消息，消息按追加顺序排列
// ownerID 为空时不校验所有者
// 返回:
//   - *model.Chat: 会话对象，未找到（或不属于 ownerID）返回 nil
//   - error: 数据库错误
func (r *ChatRepository) GetByIDWithMessages(ctx context.Context, chatID, ownerID string) (*model.Chat, error) {
	var chat model.Chat
	query := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", chatID)
	if ownerID != "" {
		query = query.Where("user_id = ?", ownerID)
	}

	err := query.First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// ListByOwnerWithPreviews 获取用户的所有会话，按 updated_at 倒序
// 每个会话只带回第一条用户消息和第一条助手消息，供历史列表生成摘要
func (r *ChatRepository) ListByOwnerWithPreviews(ctx context.Context, ownerID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&chats).Error
	if err != nil || len(chats) == 0 {
		return chats, err
	}

	ids := make([]string, len(chats))
	index := make(map[string]int, len(chats))
	for i := range chats {
		ids[i] = chats[i].ID
		index[chats[i].ID] = i
	}

	// 每个 (chat_id, role) 分组中 id 最小的即为最早的一条
	firstIDs := r.db.Model(&model.Message{}).
		Select("MIN(id)").
		Where("chat_id IN ?", ids).
		Where("role IN ?", []string{model.MessageRoleUser, model.MessageRoleAssistant}).
		Group("chat_id, role")

	var previews []model.Message
	err = r.db.WithContext(ctx).
		Where("id IN (?)", firstIDs).
		Order("id ASC").
		Find(&previews).Error
	if err != nil {
		return nil, err
	}
	for _, m := range previews {
		if i, ok := index[m.ChatID]; ok {
			chats[i].Messages = append(chats[i].Messages, m)
		}
	}
	return chats, nil
}
