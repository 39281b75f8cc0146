// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录、限流等
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"neural-chat-server/pkg/jwt"
	"neural-chat-server/pkg/response"
	"neural-chat-server/pkg/util"
)

// AuthCookieName 保存 JWT 的 cookie 名称
const AuthCookieName = "jwt"

// 上下文中的 key
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxToken    = "token"
	ctxTokenExp = "token_exp"
)

// TokenBlacklist 检查 Token 是否已登出
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool
}

// AuthMiddleware 创建 JWT 认证中间件
// 依次从 Authorization: Bearer 请求头和 jwt cookie 读取 Token
// 参数:
//   - jwtService: JWT 服务实例，用于解析和验证 Token
//   - blacklist: Token 黑名单
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func AuthMiddleware(jwtService *jwt.JWTService, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 获取 Token
		tokenString, ok := extractToken(c)
		if !ok {
			response.Unauthorized(c, "Unauthorized - no token provided")
			c.Abort()
			return
		}

		// 2. 验证签名和过期时间
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Unauthorized - invalid or expired token")
			c.Abort()
			return
		}

		// 3. 检查 Token 是否在黑名单中（用户已登出）
		if blacklist != nil && blacklist.IsTokenBlacklisted(c.Request.Context(), util.HashToken(tokenString)) {
			response.Unauthorized(c, "Unauthorized - token revoked")
			c.Abort()
			return
		}

		// 4. 将用户信息存入上下文
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxToken, tokenString)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// extractToken 优先读取 Bearer 请求头，其次读取 cookie
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
			return strings.TrimSpace(parts[1]), true
		}
		return "", false
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// GetUserID 从上下文获取用户 ID
// 未认证返回空字符串
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

// GetToken 从上下文获取原始 Token 及其过期时间，用于登出
func GetToken(c *gin.Context) (string, time.Time) {
	return c.GetString(ctxToken), c.GetTime(ctxTokenExp)
}
