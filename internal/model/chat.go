package model

import (
	"time"
)

// DefaultChatTitle 首条消息内容为空时使用的标题
const DefaultChatTitle = "New Chat"

// ChatTitleMaxRunes 标题取首条用户消息的前 30 个字符
const ChatTitleMaxRunes = 30

// Chat 会话模型
// 对应数据库表 chats
// 一个会话只属于一个用户，消息按追加顺序排列
type Chat struct {
	// ID 会话唯一标识，UUID 字符串
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// UserID 所属用户ID
	UserID string `gorm:"size:36;index;not null" json:"user_id"`

	// Title 会话标题，创建时确定，之后不再修改
	Title string `gorm:"size:255;not null" json:"title"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 最后一次追加消息的时间，用于历史列表排序
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	// Messages 会话中的所有消息（一对多关系）
	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}

// ChatSummary 历史列表中的会话摘要
type ChatSummary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Input    string    `json:"input"`    // 第一条用户消息
	FullText string    `json:"fulltext"` // 第一条助手回复
	Date     time.Time `json:"date"`     // 会话 updated_at
	ChatLink string    `json:"chatlink"`
}
