// Package realtime 基于 WebSocket 的实时推送渠道。
// 投递为 at-most-once、尽力而为：连接断开或缓冲满时直接丢弃，
// 站内通知记录仍是权威存档
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/metrics"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

const (
	// writeWait 单次写入超时
	writeWait = 10 * time.Second
	// pongWait 心跳超时，超过未收到 pong 即判定连接失效
	pongWait = 60 * time.Second
	// pingPeriod 心跳间隔，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10
	// maxInboundSize 入站消息大小上限
	maxInboundSize = 4096
	// sendBufferSize 出站缓冲。写满即视为客户端消费过慢，断开连接
	sendBufferSize = 64
)

// connection 单个 WebSocket 连接
type connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
}

// Hub 管理所有在线连接，并实现实时推送接口
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*connection]struct{}

	// inboundLimiter 入站消息限流，按连接计
	inboundLimiter ratelimit.Limiter
	inboundLimit   ratelimit.Limit
	metrics        *metrics.Metrics
}

// NewHub 创建连接管理器。inbound 为单连接入站消息限额
func NewHub(inbound ratelimit.Limit, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:          make(map[string]map[*connection]struct{}),
		inboundLimiter: ratelimit.NewMemoryLimiter(),
		inboundLimit:   inbound,
		metrics:        m,
	}
}

// Attach 接管一个已完成鉴权与升级的连接，阻塞直到连接关闭
func (h *Hub) Attach(ctx context.Context, userID string, ws *websocket.Conn) {
	conn := &connection{
		id:     uuid.New().String(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
	}

	h.register(conn)
	defer h.unregister(conn)

	logger.Info(ctx, "realtime connection established", "user_id", userID, "connection_id", conn.id)

	go h.writePump(conn)
	h.readPump(ctx, conn)

	logger.Info(ctx, "realtime connection closed", "user_id", userID, "connection_id", conn.id)
}

// Publish 向用户的所有在线连接推送通知。
// 无在线连接返回 (false, nil)；至少一条连接接收即视为已投递
func (h *Hub) Publish(_ context.Context, userID string, notification *domain.Notification) (bool, error) {
	payload, err := json.Marshal(map[string]any{
		"event": "notification",
		"data":  notification,
	})
	if err != nil {
		return false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.conns[userID]
	if len(conns) == 0 {
		return false, nil
	}

	delivered := false
	for conn := range conns {
		select {
		case conn.send <- payload:
			delivered = true
		default:
			// 缓冲已满：丢弃本条，at-most-once 不补投
		}
	}
	return delivered, nil
}

// Online 用户是否有在线连接
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Shutdown 关闭所有连接
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.conns {
		for conn := range conns {
			close(conn.send)
			h.metrics.RealtimeConnections.Dec()
		}
	}
	h.conns = make(map[string]map[*connection]struct{})
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[conn.userID] == nil {
		h.conns[conn.userID] = make(map[*connection]struct{})
	}
	h.conns[conn.userID][conn] = struct{}{}
	h.metrics.RealtimeConnections.Inc()
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[conn.userID]; ok {
		if _, ok := conns[conn]; ok {
			delete(conns, conn)
			close(conn.send)
			if len(conns) == 0 {
				delete(h.conns, conn.userID)
			}
			h.metrics.RealtimeConnections.Dec()
		}
	}
}

// readPump 消费入站消息。超出单连接限额即关闭连接
func (h *Hub) readPump(ctx context.Context, conn *connection) {
	defer conn.ws.Close()

	conn.ws.SetReadLimit(maxInboundSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(ctx, "realtime connection read error", "connection_id", conn.id, "error", err)
			}
			return
		}

		result, err := h.inboundLimiter.Allow(ctx, "ws:inbound:"+conn.id, h.inboundLimit)
		if err != nil {
			continue
		}
		if !result.Allowed {
			logger.Warn(ctx, "realtime connection exceeded inbound limit, closing",
				"user_id", conn.userID, "connection_id", conn.id)
			_ = conn.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "inbound rate limit exceeded"),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

// writePump 发送出站消息与心跳
func (h *Hub) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
