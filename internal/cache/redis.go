// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、接口限流计数以及跨实例的会话事件广播
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"neural-chat-server/internal/config"
)

// chatEventsChannel 会话事件广播频道
const chatEventsChannel = "chat:events"

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ==================== JWT 黑名单 ====================

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除
	return c.client.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	// EXISTS 命令返回存在的 Key 数量
	return c.client.Exists(ctx, blacklistKey(tokenHash)).Val() > 0
}

func blacklistKey(tokenHash string) string {
	return fmt.Sprintf("jwt:blacklist:%s", tokenHash)
}

// ==================== 限流 ====================

// IncrWindow 对固定窗口计数器加一
// 窗口内第一次计数时设置过期时间
// 参数:
//   - ctx: 上下文
//   - key: 限流维度（如客户端 IP）
//   - window: 窗口长度
//
// 返回:
//   - int64: 当前窗口内的请求数
//   - time.Duration: 窗口剩余时间
//   - error: Redis 操作错误
func (c *RedisCache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX: 只在 key 没有过期时间时设置，避免每次请求都延长窗口
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

// ==================== Pub/Sub ====================
// 用于多服务实例间的会话事件广播

// ChatEvent 跨实例广播的会话事件
type ChatEvent struct {
	UserID  string          `json:"user_id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PublishChatEvent 发布会话事件
// 所有订阅该频道的实例都会收到，并推送给本机上该用户的连接
func (c *RedisCache) PublishChatEvent(ctx context.Context, event *ChatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, chatEventsChannel, data).Err()
}

// SubscribeChatEvents 订阅会话事件
// 返回 PubSub 对象，调用方负责关闭
func (c *RedisCache) SubscribeChatEvents(ctx context.Context) *redis.PubSub {
	return c.client.Subscribe(ctx, chatEventsChannel)
}
