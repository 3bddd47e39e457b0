package domain

import "time"

// 生命周期事件类型
const (
	EventNotificationCreated    = "notification.created"
	EventNotificationDelivered  = "notification.delivered"
	EventNotificationSuppressed = "notification.suppressed"
	EventNotificationFailed     = "notification.failed"
)

// LifecycleEvent 通知生命周期事件，发布到消息总线供下游消费
type LifecycleEvent struct {
	// Kind 事件类型
	Kind string `json:"kind"`
	// NotificationID 关联的通知 ID，未落库的决策为空
	NotificationID string `json:"notification_id,omitempty"`
	// UserID 接收者
	UserID string `json:"user_id"`
	// Type 通知类型
	Type NotificationType `json:"type"`
	// Reason 终态原因说明
	Reason string `json:"reason,omitempty"`
	// Outcomes 渠道投递结果快照
	Outcomes map[Channel]ChannelOutcome `json:"outcomes,omitempty"`
	// OccurredOn 事件时间
	OccurredOn time.Time `json:"occurred_on"`
}
