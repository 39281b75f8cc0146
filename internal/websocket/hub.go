package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"neural-chat-server/internal/cache"
	"neural-chat-server/internal/model"
	"neural-chat-server/pkg/logger"
)

// publishTimeout 单次发布到 Redis 的超时
const publishTimeout = 2 * time.Second

// eventQueueSize 待发布事件的缓冲区大小
const eventQueueSize = 256

// EventBroker 跨实例的会话事件广播
// 由 cache.RedisCache 实现
type EventBroker interface {
	PublishChatEvent(ctx context.Context, event *cache.ChatEvent) error
	SubscribeChatEvents(ctx context.Context) *redis.PubSub
}

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理所有客户端连接
// 2. 把会话变更推送给会话所有者的全部连接
// 3. 配置了 broker 时经 Redis 在多实例间转发
type Hub struct {
	// 用户连接映射：userID -> []*Client
	// 一个用户可能同时打开多个页面
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	events     chan *cache.ChatEvent
	done       chan struct{}

	// 互斥锁，保护 clients
	mu sync.RWMutex

	broker EventBroker
	log    *logger.Logger
}

// NewHub 创建 Hub 实例
// broker 为 nil 时只推送给本实例的连接
func NewHub(broker EventBroker, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *cache.ChatEvent, eventQueueSize),
		done:       make(chan struct{}),
		broker:     broker,
		log:        log,
	}
}

// Run 启动 Hub 的主循环，阻塞直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.broker != nil {
		go h.relay(ctx)
		go h.publishLoop(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.userID] = append(h.clients[client.userID], client)
	count := len(h.clients[client.userID])
	h.mu.Unlock()

	h.log.Debug("websocket client registered", "user_id", client.userID, "connections", count)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			h.clients[client.userID] = append(clients[:i], clients[i+1:]...)
			client.Close()
			break
		}
	}
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
	}

	h.log.Debug("websocket client unregistered", "user_id", client.userID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.clients {
		for _, c := range clients {
			c.Close()
		}
		delete(h.clients, userID)
	}
}

// Register 注册客户端（供外部调用）
// Hub 已停止时直接关闭客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ConnectionCount 返回用户在本实例上的连接数
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// NotifyChatUpdated 推送会话变更
// 不阻塞调用方：本地投递是非阻塞的，跨实例发布走异步队列
func (h *Hub) NotifyChatUpdated(ownerID string, chat *model.Chat) {
	if ownerID == "" || chat == nil {
		return
	}

	payload, err := json.Marshal(&ChatUpdatedPayload{Chat: chat})
	if err != nil {
		h.log.Error("marshal chat update failed", "chat_id", chat.ID, "error", err)
		return
	}
	event := &cache.ChatEvent{UserID: ownerID, Type: TypeChatUpdated, Payload: payload}

	if h.broker == nil {
		h.deliver(event)
		return
	}

	select {
	case h.events <- event:
	default:
		// 队列满时退化为只推送本实例
		h.log.Warn("chat event queue full, delivering locally", "user_id", ownerID)
		h.deliver(event)
	}
}

// deliver 推送给本实例上该用户的所有连接
func (h *Hub) deliver(event *cache.ChatEvent) {
	data, err := json.Marshal(NewMessage(event.Type, event.Payload))
	if err != nil {
		h.log.Error("marshal websocket message failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[event.UserID] {
		client.enqueue(data)
	}
}

// publishLoop 按顺序把事件发布到 Redis
// 本实例也通过订阅收到自己的事件，因此发布成功后不再本地投递
func (h *Hub) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.events:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := h.broker.PublishChatEvent(pubCtx, event)
			cancel()
			if err != nil {
				h.log.Warn("publish chat event failed, delivering locally", "user_id", event.UserID, "error", err)
				h.deliver(event)
			}
		}
	}
}

// relay 订阅 Redis 频道，把其他实例（以及本实例）发布的事件推送给本地连接
func (h *Hub) relay(ctx context.Context) {
	pubsub := h.broker.SubscribeChatEvents(ctx)
	if pubsub == nil {
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event cache.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.log.Warn("invalid chat event", "error", err)
				continue
			}
			h.deliver(&event)
		}
	}
}
