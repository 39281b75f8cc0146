package model

import (
	"time"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
)

// Message 消息模型
// 对应数据库表 messages
// 消息追加后不可修改，顺序即自增主键顺序
type Message struct {
	// ID 消息唯一标识，自增主键
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// ChatID 所属会话ID，外键关联 chats.id
	ChatID string `gorm:"size:36;index;not null" json:"chat_id"`

	// Role 消息角色: user / assistant
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容
	// MySQL 的 TEXT 只有 64KB，小于请求体上限，因此使用 MEDIUMTEXT
	Content string `gorm:"type:mediumtext;not null" json:"content"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
