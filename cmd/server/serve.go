package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"neural-chat-server/internal/cache"
	"neural-chat-server/internal/config"
	"neural-chat-server/internal/document"
	"neural-chat-server/internal/handler"
	"neural-chat-server/internal/metrics"
	"neural-chat-server/internal/middleware"
	"neural-chat-server/internal/repository"
	"neural-chat-server/internal/service"
	"neural-chat-server/internal/websocket"
	"neural-chat-server/pkg/jwt"
	"neural-chat-server/pkg/logger"
)

// shutdownTimeout 优雅关闭的最长等待时间
const shutdownTimeout = 10 * time.Second

// multipartOverhead multipart 边界和表单头的额外余量
const multipartOverhead = 1 << 20

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	// 初始化数据库
	db, err := initDatabase(cfg, log)
	if err != nil {
		return err
	}
	if err := autoMigrate(db, log); err != nil {
		return err
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}()

	if cfg.AI.APIKey == "" {
		log.Warn("MISTRAL_API_KEY is not set, completions and document extraction are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpire)

	// 初始化 WebSocket Hub
	wsHub := websocket.NewHub(redisCache, log)
	go wsHub.Run(ctx)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)

	// 初始化 Service 层
	aiService := service.NewAIService(cfg.AI)
	extractor := document.NewPDFToText(cfg.Document.PDFToTextPath, cfg.Document.MaxUploadBytes, cfg.Document.ExtractTimeout)
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	chatService := service.NewChatService(chatRepo)
	memoryService := service.NewMemoryService(memoryRepo)
	documentService := service.NewDocumentService(extractor, aiService, cfg.AI, cfg.Document, log)
	completionService := service.NewCompletionService(chatService, memoryService, aiService, wsHub, cfg.AI, log)

	// 初始化 Handler 层
	handlers := &handler.Handlers{
		Auth:   handler.NewAuthHandler(authService, cfg.Server.Mode == "release"),
		Chat:   handler.NewChatHandler(completionService, chatService),
		Memory: handler.NewMemoryHandler(memoryService, documentService, cfg.Document.MaxUploadBytes),
	}
	wsHandler := websocket.NewHandler(wsHub, jwtService, redisCache, cfg.Server.CORS, log)

	router := newRouter(cfg, log)
	handler.RegisterRoutes(router, handlers, handler.RouteOptions{
		JWTService:    jwtService,
		Blacklist:     redisCache,
		APIMiddleware: apiMiddleware(cfg, log, redisCache),
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	wsHandler.RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", addr, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 优雅关闭
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// newRouter 创建 Gin 引擎并挂载全局中间件
func newRouter(cfg *config.Config, log *logger.Logger) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.Server.CORS...)))
	router.Use(middleware.BodyLimitMiddleware(cfg.Document.MaxUploadBytes + multipartOverhead))
	return router
}

// apiMiddleware /api 组上的中间件
func apiMiddleware(cfg *config.Config, log *logger.Logger, redisCache *cache.RedisCache) []gin.HandlerFunc {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return []gin.HandlerFunc{
		middleware.RateLimitMiddleware(redisCache, cfg.RateLimit.Requests, cfg.RateLimit.Window, log),
	}
}
