// Package mysql 基于 GORM 的仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/db"
)

// notificationRepository 通知仓储的 MySQL 实现
type notificationRepository struct {
	db *db.DB
}

// NewNotificationRepository 创建通知仓储
func NewNotificationRepository(database *db.DB) domain.NotificationRepository {
	return &notificationRepository{db: database}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetByNotificationID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}

func (r *notificationRepository) ListByUserID(ctx context.Context, userID string, filter domain.ListFilter, limit, offset int) ([]*domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Unread {
		query = query.Where("`read` = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var notifications []*domain.Notification
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, total, nil
}

func (r *notificationRepository) UpdateOutcomes(ctx context.Context, notificationID string, outcomes map[domain.Channel]domain.ChannelOutcome) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("notification_id = ?", notificationID).
		Update("outcomes", outcomes).Error
	if err != nil {
		return fmt.Errorf("failed to update channel outcomes: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]any{"read": true, "read_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkUnread(ctx context.Context, notificationID string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]any{"read": false, "read_at": nil}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notification unread: %w", err)
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, notificationID string) error {
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Delete(&domain.Notification{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", before).
		Delete(&domain.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
