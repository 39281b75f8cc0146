// Package websocket 提供 WebSocket 通信功能
// 把会话变更实时推送给同一用户的所有连接
package websocket

import (
	"time"

	"neural-chat-server/internal/model"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeHeartbeat = "heartbeat" // 心跳

	// 服务端 → 客户端
	TypeConnected   = "connected"    // 连接建立
	TypeChatUpdated = "chat.updated" // 会话写入了新消息

	// 通用
	TypeError = "error" // 错误消息
	TypePong  = "pong"  // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`                 // 消息类型
	Payload   interface{} `json:"payload"`              // 消息内容
	Timestamp int64       `json:"timestamp"`            // 时间戳（毫秒）
	MessageID string      `json:"message_id,omitempty"` // 消息ID，用于追踪
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ==================== Payload 类型定义 ====================

// ConnectedPayload 连接建立后发送给客户端
type ConnectedPayload struct {
	UserID string `json:"user_id"`
}

// ChatUpdatedPayload 会话变更 Payload
// 包含完整的会话和全部消息
type ChatUpdatedPayload struct {
	Chat *model.Chat `json:"chat"`
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}
