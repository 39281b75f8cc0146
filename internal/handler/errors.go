// Package handler 提供 HTTP 请求处理器
// 负责参数绑定、调用服务层以及把服务层错误映射为统一响应
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"neural-chat-server/internal/service"
	"neural-chat-server/pkg/response"
)

// writeError 把服务层错误映射为 HTTP 响应
// 已经写过响应时不再写入
func writeError(c *gin.Context, err error, data interface{}) {
	if c.Writer.Written() {
		return
	}

	var (
		verr     *service.ValidationError
		upstream *service.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeBadRequest, verr.Error(), gin.H{"fields": verr.Fields})

	case errors.Is(err, service.ErrChatNotFound):
		response.ErrorWithData(c, http.StatusNotFound, response.CodeChatNotFound, "Chat could not be found or created.", data)

	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, err.Error())

	case errors.As(err, &upstream):
		switch {
		case upstream.RateLimited():
			response.ErrorWithData(c, http.StatusTooManyRequests, response.CodeUpstreamRateLimit, upstream.Error(), data)
		case upstream.Timeout:
			response.ErrorWithData(c, http.StatusGatewayTimeout, response.CodeUpstreamTimeout, upstream.Error(), data)
		default:
			response.ErrorWithData(c, http.StatusBadGateway, response.CodeUpstreamError, upstream.Error(), data)
		}

	case errors.Is(err, service.ErrAIUnavailable):
		response.ErrorWithCode(c, http.StatusServiceUnavailable, response.CodeUpstreamError, err.Error())

	case errors.Is(err, service.ErrUnreadableDocument):
		response.ErrorWithCode(c, http.StatusBadRequest, response.CodeUnreadableDocument, "Could not extract text from this PDF.")

	case errors.Is(err, service.ErrPayloadTooLarge):
		response.ErrorWithCode(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())

	case errors.Is(err, service.ErrUserExists), errors.Is(err, service.ErrEmailExists):
		response.ErrorWithCode(c, http.StatusBadRequest, response.CodeUserExists, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials):
		response.ErrorWithCode(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())

	default:
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalError, "Server Error: "+err.Error(), data)
	}
}

// bindJSON 解析请求体，失败时写入 400
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.ErrorWithCode(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "request body too large")
			return false
		}
		response.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}
