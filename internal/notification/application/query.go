package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/utils"
)

// NotificationQuery 处理通知相关的查询操作
type NotificationQuery struct {
	repo  domain.NotificationRepository
	prefs domain.PreferenceRepository
}

// NewNotificationQuery 创建查询服务
func NewNotificationQuery(repo domain.NotificationRepository, prefs domain.PreferenceRepository) *NotificationQuery {
	return &NotificationQuery{repo: repo, prefs: prefs}
}

// List 分页查询某用户的通知。仅归属人或超级管理员可查
func (q *NotificationQuery) List(ctx context.Context, identity Identity, userID string, filter domain.ListFilter, page, pageSize int) ([]*domain.Notification, *utils.Pagination, error) {
	if identity.ID != userID && identity.Role != RoleSuperAdmin {
		return nil, nil, domain.ErrForbidden
	}

	p := utils.NewPagination(page, pageSize, 0)
	notifications, total, err := q.repo.ListByUserID(ctx, userID, filter, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, utils.NewPagination(page, pageSize, total), nil
}

// Get 按通知 ID 查询单条
func (q *NotificationQuery) Get(ctx context.Context, identity Identity, notificationID string) (*domain.Notification, error) {
	n, err := q.repo.GetByNotificationID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotFound
	}
	if !n.OwnedBy(identity.ID) && identity.Role != RoleSuperAdmin {
		return nil, domain.ErrForbidden
	}
	return n, nil
}

// CountUnread 统计未读数
func (q *NotificationQuery) CountUnread(ctx context.Context, identity Identity, userID string) (int64, error) {
	if identity.ID != userID && identity.Role != RoleSuperAdmin {
		return 0, domain.ErrForbidden
	}
	return q.repo.CountUnread(ctx, userID)
}

// GetPreferences 查询用户偏好，未保存过则返回默认偏好
func (q *NotificationQuery) GetPreferences(ctx context.Context, identity Identity, userID string) (*domain.PreferenceProfile, error) {
	if identity.ID != userID && identity.Role != RoleSuperAdmin {
		return nil, domain.ErrForbidden
	}
	profile, err := q.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if profile == nil {
		return domain.DefaultProfile(), nil
	}
	return profile, nil
}
