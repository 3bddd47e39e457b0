package domain

import (
	"context"
	"time"
)

// ListFilter 通知查询过滤条件
type ListFilter struct {
	// Type 按类型过滤，空值不过滤
	Type NotificationType
	// Category 按分类过滤，空值不过滤
	Category Category
	// Unread 仅未读
	Unread bool
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	// Create 创建通知记录
	Create(ctx context.Context, notification *Notification) error
	// GetByNotificationID 按业务 ID 获取，不存在返回 (nil, nil)
	GetByNotificationID(ctx context.Context, notificationID string) (*Notification, error)
	// ListByUserID 分页获取用户通知列表
	ListByUserID(ctx context.Context, userID string, filter ListFilter, limit, offset int) ([]*Notification, int64, error)
	// UpdateOutcomes 更新渠道投递结果
	UpdateOutcomes(ctx context.Context, notificationID string, outcomes map[Channel]ChannelOutcome) error
	// MarkRead / MarkUnread 读状态流转
	MarkRead(ctx context.Context, notificationID string, at time.Time) error
	MarkUnread(ctx context.Context, notificationID string) error
	// Delete 删除通知
	Delete(ctx context.Context, notificationID string) error
	// DeleteExpired 删除 before 之前过期的通知，返回删除条数
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	// CountUnread 用户未读数
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// PreferenceRepository 偏好仓储接口
type PreferenceRepository interface {
	// Get 获取用户偏好，未配置返回 (nil, nil)
	Get(ctx context.Context, userID string) (*PreferenceProfile, error)
	// Save 保存或更新用户偏好
	Save(ctx context.Context, userID string, profile *PreferenceProfile) error
}

// EmailSender 邮件发送接口，具体投递由外部协作方实现
type EmailSender interface {
	Send(ctx context.Context, userID, subject, content string) error
}

// RealtimePublisher 实时推送接口。
// 投递为 at-most-once、尽力而为：无在线连接时返回 (false, nil)，
// 站内记录仍是权威存档
type RealtimePublisher interface {
	Publish(ctx context.Context, userID string, notification *Notification) (delivered bool, err error)
}

// EventPublisher 通知生命周期事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
}
