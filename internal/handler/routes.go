package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"neural-chat-server/internal/middleware"
	"neural-chat-server/pkg/jwt"
)

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Auth   *AuthHandler
	Chat   *ChatHandler
	Memory *MemoryHandler
}

// RouteOptions 路由依赖
type RouteOptions struct {
	JWTService *jwt.JWTService
	Blacklist  middleware.TokenBlacklist
	// APIMiddleware 挂在 /api 组上，例如限流
	APIMiddleware []gin.HandlerFunc
}

// RegisterRoutes 注册 /health 和 /api/v1 下的所有路由
func RegisterRoutes(router *gin.Engine, h *Handlers, opts RouteOptions) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is running")
	})

	api := router.Group("/api")
	api.Use(opts.APIMiddleware...)
	v1 := api.Group("/v1")

	requireAuth := middleware.AuthMiddleware(opts.JWTService, opts.Blacklist)

	// 认证相关
	auth := v1.Group("/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
		auth.GET("/me", requireAuth, h.Auth.Me)
	}

	// 会话相关（需要登录）
	chat := v1.Group("/chat", requireAuth)
	{
		chat.POST("/completions", h.Chat.Complete)
		chat.GET("/:chatId", h.Chat.GetChat)
	}
	v1.GET("/history", requireAuth, h.Chat.History)

	// 记忆档案（需要登录）
	memory := v1.Group("/memory", requireAuth)
	{
		memory.GET("", h.Memory.GetMemory)
		memory.POST("", h.Memory.SaveMemory)
		memory.POST("/document", h.Memory.ProcessDocument)
	}
}
