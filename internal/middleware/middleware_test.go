package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-chat-server/pkg/jwt"
	"neural-chat-server/pkg/logger"
	"neural-chat-server/pkg/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticBlacklist map[string]bool

func (b staticBlacklist) IsTokenBlacklisted(_ context.Context, hash string) bool {
	return b[hash]
}

func newAuthRouter(jwtSvc *jwt.JWTService, bl TokenBlacklist) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(jwtSvc, bl), func(c *gin.Context) {
		token, exp := GetToken(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetUserID(c),
			"username": GetUsername(c),
			"has_tok":  token != "",
			"has_exp":  !exp.IsZero(),
		})
	})
	return r
}

func TestAuthMiddlewareAcceptsHeaderAndCookie(t *testing.T) {
	jwtSvc := jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	token, _, err := jwtSvc.GenerateAccessToken("u1", "ana")
	require.NoError(t, err)
	r := newAuthRouter(jwtSvc, staticBlacklist{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","username":"ana","has_tok":true,"has_exp":true}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	jwtSvc := jwt.NewJWTService("0123456789abcdef0123456789abcdef", time.Hour)
	token, _, err := jwtSvc.GenerateAccessToken("u1", "ana")
	require.NoError(t, err)
	revoked, _, err := jwtSvc.GenerateAccessToken("u2", "bob")
	require.NoError(t, err)
	r := newAuthRouter(jwtSvc, staticBlacklist{util.HashToken(revoked): true})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + token},
		{"garbage", "Bearer not-a-jwt"},
		{"revoked", "Bearer " + revoked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":1001`)
		})
	}
}

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (l *countingLimiter) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	l.counts[key]++
	return l.counts[key], window, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, 2, 15*time.Minute, logger.NewNop()))
	r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "900", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "please try again after 15 minutes")
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, 1, time.Minute, logger.NewNop()))
	r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware(DefaultCORSConfig("http://localhost:5173")))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(LoggerMiddleware(logger.NewNop()), RecoveryMiddleware(logger.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server Error: kaboom")
}

func TestBodyLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimitMiddleware(8))
	r.POST("/x", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("definitely too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
