// Package domain 通知管线的领域模型
package domain

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType 通知类型
type NotificationType string

const (
	TypeLowStock           NotificationType = "low_stock"            // 低库存告警
	TypeNewOrder           NotificationType = "new_order"            // 新订单
	TypeCubicVolumeAlert   NotificationType = "cubic_volume_alert"   // 体积重超限告警
	TypeCommissionUpdate   NotificationType = "commission_update"    // 佣金费率变更
	TypeVendorStatusChange NotificationType = "vendor_status_change" // 商家状态变更
	TypeSystemAlert        NotificationType = "system_alert"         // 系统告警
	TypeGeneral            NotificationType = "general"              // 通用通知
)

// Category 通知分类
type Category string

const (
	CategoryProduct    Category = "product"
	CategoryOrder      Category = "order"
	CategorySystem     Category = "system"
	CategoryAccount    Category = "account"
	CategoryCommission Category = "commission"
)

// DefaultCategory 返回通知类型的默认分类
func DefaultCategory(t NotificationType) Category {
	switch t {
	case TypeLowStock, TypeCubicVolumeAlert:
		return CategoryProduct
	case TypeNewOrder:
		return CategoryOrder
	case TypeCommissionUpdate:
		return CategoryCommission
	case TypeVendorStatusChange:
		return CategoryAccount
	default:
		return CategorySystem
	}
}

// Priority 通知优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel 投递渠道
type Channel string

const (
	ChannelStore    Channel = "store"    // 站内持久化记录
	ChannelEmail    Channel = "email"    // 邮件
	ChannelRealtime Channel = "realtime" // WebSocket 实时推送
)

// ChannelOutcome 单渠道投递结果
type ChannelOutcome string

const (
	OutcomeDelivered          ChannelOutcome = "delivered"
	OutcomeFailed             ChannelOutcome = "failed"
	OutcomeDeferred           ChannelOutcome = "deferred"             // 静默时段内延迟
	OutcomeDisabled           ChannelOutcome = "disabled"             // 用户偏好关闭
	OutcomeNoActiveConnection ChannelOutcome = "no_active_connection" // 无在线连接，非失败
)

// Notification 通知实体，由管线从已接受的请求创建
type Notification struct {
	gorm.Model
	// NotificationID 通知业务 ID
	NotificationID string `gorm:"column:notification_id;type:varchar(32);uniqueIndex;not null" json:"notification_id"`
	// UserID 接收者用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// Type 通知类型
	Type NotificationType `gorm:"column:type;type:varchar(32);index;not null" json:"type"`
	// Category 通知分类
	Category Category `gorm:"column:category;type:varchar(20);index;not null" json:"category"`
	// Priority 优先级
	Priority Priority `gorm:"column:priority;type:varchar(10);not null" json:"priority"`
	// Title 标题，不超过 200 字符
	Title string `gorm:"column:title;type:varchar(200);not null" json:"title"`
	// Message 正文，不超过 1000 字符
	Message string `gorm:"column:message;type:varchar(1000);not null" json:"message"`
	// Metadata 类型相关的结构化元数据
	Metadata map[string]any `gorm:"column:metadata;serializer:json" json:"metadata,omitempty"`
	// ActionURL 可选的动作链接
	ActionURL string `gorm:"column:action_url;type:varchar(500)" json:"action_url,omitempty"`
	// Read 已读标记
	Read bool `gorm:"column:read;index;not null;default:false" json:"read"`
	// ReadAt 已读时间
	ReadAt *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	// ExpiresAt 过期时间，过期后由后台清理移除
	ExpiresAt *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	// Outcomes 各渠道投递结果
	Outcomes map[Channel]ChannelOutcome `gorm:"column:outcomes;serializer:json" json:"outcomes,omitempty"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}

// MarkRead 标记已读。已读状态单调，只能通过 MarkUnread 显式回退
func (n *Notification) MarkRead(now time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &now
}

// MarkUnread 显式回退为未读
func (n *Notification) MarkUnread() {
	n.Read = false
	n.ReadAt = nil
}

// Expired 判断通知是否已过期
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}

// OwnedBy 判断用户是否为通知归属人
func (n *Notification) OwnedBy(userID string) bool {
	return n.UserID == userID
}
