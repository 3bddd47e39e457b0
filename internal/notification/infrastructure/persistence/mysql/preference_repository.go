package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/db"
)

// PreferenceModel 用户偏好持久化模型，偏好内容整体 JSON 存储
type PreferenceModel struct {
	gorm.Model
	UserID  string                    `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null"`
	Profile *domain.PreferenceProfile `gorm:"column:profile;serializer:json;not null"`
}

// TableName 指定表名
func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

// preferenceRepository 偏好仓储的 MySQL 实现
type preferenceRepository struct {
	db *db.DB
}

// NewPreferenceRepository 创建偏好仓储
func NewPreferenceRepository(database *db.DB) domain.PreferenceRepository {
	return &preferenceRepository{db: database}
}

func (r *preferenceRepository) Get(ctx context.Context, userID string) (*domain.PreferenceProfile, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return model.Profile, nil
}

func (r *preferenceRepository) Save(ctx context.Context, userID string, profile *domain.PreferenceProfile) error {
	model := PreferenceModel{
		UserID:  userID,
		Profile: profile,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"profile", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
