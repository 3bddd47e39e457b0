// Package cached 带 Redis 缓存的仓储装饰器
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/cache"
	"github.com/wyfcoding/marketnotify/pkg/logger"
)

// preferenceTTL 偏好缓存有效期。偏好读多写少，管线每次投递都要读
const preferenceTTL = 5 * time.Minute

// PreferenceRepository 偏好仓储的缓存装饰器，写入时失效
type PreferenceRepository struct {
	inner domain.PreferenceRepository
	cache *cache.RedisCache
}

// NewPreferenceRepository 包装底层偏好仓储
func NewPreferenceRepository(inner domain.PreferenceRepository, c *cache.RedisCache) *PreferenceRepository {
	return &PreferenceRepository{inner: inner, cache: c}
}

func preferenceKey(userID string) string {
	return fmt.Sprintf("notify:prefs:%s", userID)
}

// Get 优先读缓存，未命中回源并回填。
// 未配置偏好（inner 返回 nil）不缓存，数据量小且保持语义简单
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*domain.PreferenceProfile, error) {
	var profile domain.PreferenceProfile
	if err := r.cache.Get(ctx, preferenceKey(userID), &profile); err == nil {
		return &profile, nil
	}

	loaded, err := r.inner.Get(ctx, userID)
	if err != nil || loaded == nil {
		return loaded, err
	}

	if err := r.cache.Set(ctx, preferenceKey(userID), loaded, preferenceTTL); err != nil {
		logger.Warn(ctx, "failed to cache preference profile", "user_id", userID, "error", err)
	}
	return loaded, nil
}

// Save 先写库再失效缓存
func (r *PreferenceRepository) Save(ctx context.Context, userID string, profile *domain.PreferenceProfile) error {
	if err := r.inner.Save(ctx, userID, profile); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, preferenceKey(userID)); err != nil {
		logger.Warn(ctx, "failed to invalidate preference cache", "user_id", userID, "error", err)
	}
	return nil
}
