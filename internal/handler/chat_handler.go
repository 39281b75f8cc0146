package handler

import (
	"github.com/gin-gonic/gin"

	"neural-chat-server/internal/middleware"
	"neural-chat-server/internal/service"
	"neural-chat-server/pkg/response"
)

// ChatHandler 会话请求处理器
type ChatHandler struct {
	completionService *service.CompletionService
	chatService       *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(completionService *service.CompletionService, chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		completionService: completionService,
		chatService:       chatService,
	}
}

// Complete 发送一条消息并获取模型回复
// 不传 chatId 时创建新会话
// 模型服务失败时 data 中仍带有已保存用户消息的会话
// @Summary 对话
// @Tags 会话
// @Accept json
// @Produce json
// @Param body body service.CompletionRequest true "对话请求"
// @Success 200 {object} response.Response{data=service.CompletionResult}
// @Router /api/v1/chat/completions [post]
func (h *ChatHandler) Complete(c *gin.Context) {
	var req service.CompletionRequest
	if !bindJSON(c, &req) {
		return
	}
	// 所有者只认 Token，忽略请求体中的 userId
	req.OwnerID = middleware.GetUserID(c)

	result, err := h.completionService.Complete(c.Request.Context(), &req)
	if err != nil {
		var data interface{}
		if result != nil && result.Chat != nil {
			data = result
		}
		writeError(c, err, data)
		return
	}

	response.Success(c, result)
}

// GetChat 获取单个会话及其全部消息
// @Router /api/v1/chat/{chatId} [get]
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chatService.GetByID(c.Request.Context(), c.Param("chatId"), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, chat)
}

// History 获取当前用户的会话列表，最近更新的在前
// @Router /api/v1/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	summaries, err := h.chatService.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, summaries)
}
