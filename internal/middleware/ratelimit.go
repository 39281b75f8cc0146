package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"neural-chat-server/pkg/logger"
	"neural-chat-server/pkg/response"
)

// RateLimiter 固定窗口计数器
type RateLimiter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitMiddleware 按客户端 IP 限流
// 计数器不可用时放行请求
// 参数:
//   - limiter: 计数器，生产环境为 Redis
//   - limit: 窗口内允许的请求数
//   - window: 窗口长度
func RateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	minutes := int(math.Ceil(window.Minutes()))
	message := "Too many requests, please try again after " + strconv.Itoa(minutes) + " minutes"

	return func(c *gin.Context) {
		count, ttl, err := limiter.IncrWindow(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			response.ErrorWithCode(c, http.StatusTooManyRequests, response.CodeTooManyRequests, message)
			c.Abort()
			return
		}

		c.Next()
	}
}

// BodyLimitMiddleware 限制请求体大小
// 超出时读取请求体返回 *http.MaxBytesError
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
