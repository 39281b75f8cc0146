package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"neural-chat-server/internal/middleware"
	"neural-chat-server/pkg/jwt"
	"neural-chat-server/pkg/logger"
	"neural-chat-server/pkg/response"
	"neural-chat-server/pkg/util"
)

// Handler 处理 WebSocket 连接
type Handler struct {
	hub        *Hub
	jwtService *jwt.JWTService
	blacklist  middleware.TokenBlacklist
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

// NewHandler 创建 WebSocket Handler
// allowedOrigins 为空或包含 "*" 时不校验 Origin
func NewHandler(hub *Hub, jwtService *jwt.JWTService, blacklist middleware.TokenBlacklist, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		blacklist:  blacklist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWS 处理会话通知的 WebSocket 连接
// 路由: GET /ws
// 参数: token (query parameter)，也接受 Authorization 请求头和 jwt cookie
func (h *Handler) HandleWS(c *gin.Context) {
	token := h.token(c)
	if token == "" {
		response.Unauthorized(c, "Unauthorized - no token provided")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "Unauthorized - invalid or expired token")
		return
	}
	if h.blacklist != nil && h.blacklist.IsTokenBlacklisted(c.Request.Context(), util.HashToken(token)) {
		response.Unauthorized(c, "Unauthorized - token revoked")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	client.SendMessage(NewMessage(TypeConnected, &ConnectedPayload{UserID: claims.UserID}))
	h.log.Info("websocket connected", "user_id", claims.UserID)
}

func (h *Handler) token(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(middleware.AuthCookieName); err == nil {
		return cookie
	}
	return ""
}

// RegisterRoutes 注册 WebSocket 路由
// 不挂认证中间件：浏览器无法为 WebSocket 设置请求头，token 在 handler 中校验
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWS)
}
