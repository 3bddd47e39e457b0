package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wyfcoding/marketnotify/internal/notification/infrastructure/realtime"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域校验交由网关层处理
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandler WebSocket 握手处理器，鉴权通过后将连接移交 Hub
type WSHandler struct {
	hub       *realtime.Hub
	jwtSecret string
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(hub *realtime.Hub, jwtSecret string) *WSHandler {
	return &WSHandler{hub: hub, jwtSecret: jwtSecret}
}

// RegisterRoutes 注册 WebSocket 路由。鉴权在握手阶段自行完成，
// 不经过 HTTP 层的 JWT 中间件
func (h *WSHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.Serve)
}

// Serve 处理握手：提取凭证 → 校验 → 升级 → 移交连接
func (h *WSHandler) Serve(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	claims, err := middleware.ParseIdentity(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	h.hub.Attach(c.Request.Context(), claims.UserID, ws)
}

// extractToken 按固定优先级提取凭证：Authorization 头 > query 参数 > cookie。
// 高优先级凭证存在但无效时不回退到低优先级来源
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}
