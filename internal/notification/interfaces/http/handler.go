// Package http 通知服务的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/marketnotify/internal/notification/application"
	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/middleware"
)

// NotificationHandler 通知相关的 HTTP 处理器
type NotificationHandler struct {
	app *application.Service
}

// NewNotificationHandler 创建 HTTP 处理器实例
func NewNotificationHandler(app *application.Service) *NotificationHandler {
	return &NotificationHandler{app: app}
}

// RegisterRoutes 将处理器方法绑定到路由组。调用方需先挂载 JWT 鉴权中间件
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	{
		notifications.POST("", h.Create)
		notifications.GET("", h.List)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.GET("/:id", h.Get)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.PUT("/:id/unread", h.MarkUnread)
		notifications.DELETE("/:id", h.Delete)
	}

	preferences := router.Group("/preferences")
	{
		preferences.GET("", h.GetPreferences)
		preferences.PUT("", h.SavePreferences)
	}
}

// identity 从鉴权中间件注入的上下文取出调用方身份
func identity(c *gin.Context) application.Identity {
	return application.Identity{
		ID:   middleware.GetUserID(c),
		Role: middleware.GetRole(c),
	}
}

// CreateNotificationRequest 创建通知请求
type CreateNotificationRequest struct {
	// UserID 接收者。留空表示发给自己；发给他人需要超级管理员角色
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title" binding:"required"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url"`
	Metadata  map[string]any `json:"metadata"`
	ExpiresAt *time.Time     `json:"expires_at"`
}

// Create 创建通知并送入投递管线
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller := identity(c)
	recipient := req.UserID
	if recipient == "" {
		recipient = caller.ID
	}
	if recipient != caller.ID && caller.Role != application.RoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only super admins may notify other users"})
		return
	}

	result, err := h.app.Process(c.Request.Context(), caller, &domain.NotificationRequest{
		UserID:    recipient,
		Type:      domain.NotificationType(req.Type),
		Category:  domain.Category(req.Category),
		Priority:  domain.Priority(req.Priority),
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
		Metadata:  req.Metadata,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if result.Notification == nil {
		c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"outcome":      result.Outcome,
		"notification": result.Notification,
	})
}

// List 分页查询通知列表
func (h *NotificationHandler) List(c *gin.Context) {
	caller := identity(c)
	userID := c.DefaultQuery("user_id", caller.ID)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := domain.ListFilter{
		Type:     domain.NotificationType(c.Query("type")),
		Category: domain.Category(c.Query("category")),
		Unread:   c.Query("unread") == "true",
	}

	notifications, pagination, err := h.app.List(c.Request.Context(), caller, userID, filter, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"pagination":    pagination,
	})
}

// UnreadCount 查询未读数
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	caller := identity(c)
	userID := c.DefaultQuery("user_id", caller.ID)

	count, err := h.app.CountUnread(c.Request.Context(), caller, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// Get 查询单条通知
func (h *NotificationHandler) Get(c *gin.Context) {
	notification, err := h.app.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// MarkRead 标记已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.app.MarkRead(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// MarkUnread 回退为未读
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	if err := h.app.MarkUnread(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unread"})
}

// Delete 删除通知
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.app.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetPreferences 查询偏好，user_id 缺省为本人
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	caller := identity(c)
	userID := c.DefaultQuery("user_id", caller.ID)

	profile, err := h.app.GetPreferences(c.Request.Context(), caller, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SavePreferences 保存偏好
func (h *NotificationHandler) SavePreferences(c *gin.Context) {
	caller := identity(c)
	userID := c.DefaultQuery("user_id", caller.ID)

	var profile domain.PreferenceProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.app.SavePreferences(c.Request.Context(), caller, userID, &profile); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// respondError 将管线与仓储错误映射为 HTTP 状态码
func (h *NotificationHandler) respondError(c *gin.Context, err error) {
	var throttled *domain.ThrottledError
	var suppressed *domain.SuppressedError

	switch {
	case errors.Is(err, domain.ErrValidationRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &throttled):
		c.Header("Retry-After", strconv.Itoa(int(throttled.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"retry_after": int(throttled.RetryAfter.Seconds()),
		})
	case errors.As(err, &suppressed):
		c.Header("Retry-After", strconv.Itoa(int(suppressed.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"retry_after": int(suppressed.RetryAfter.Seconds()),
		})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	default:
		logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
