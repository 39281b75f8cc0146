package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neural-chat-server/internal/middleware"
	"neural-chat-server/internal/service"
	"neural-chat-server/pkg/response"
)

// AuthHandler 认证请求处理器
// 处理用户注册、登录、登出
type AuthHandler struct {
	authService  *service.AuthService
	secureCookie bool // release 模式下 cookie 只走 HTTPS
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
	}
}

// Signup 用户注册
// @Summary 用户注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.SignupRequest true "注册信息"
// @Success 201 {object} response.Response{data=service.AuthResponse}
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	h.setTokenCookie(c, result.AccessToken, result.ExpiresAt)
	response.Created(c, result)
}

// Login 用户登录
// @Summary 用户登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=service.AuthResponse}
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	h.setTokenCookie(c, result.AccessToken, result.ExpiresAt)
	response.Success(c, result)
}

// Logout 用户登出
// 将当前 Token 加入黑名单并清除 cookie
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, expireAt := middleware.GetToken(c)

	if err := h.authService.Logout(c.Request.Context(), token, expireAt); err != nil {
		writeError(c, err, nil)
		return
	}

	h.clearTokenCookie(c)
	response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// Me 获取当前用户
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, user)
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string, expireAt time.Time) {
	maxAge := int(time.Until(expireAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookie, true)
}
