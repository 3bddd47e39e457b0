package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

// RateLimitStage 管线限流阶段。
// 与 SpamGuard 相互独立：这里按身份保护系统容量，不看内容是否相似。
// 超级管理员可按部署配置豁免
type RateLimitStage struct {
	limiter      ratelimit.Limiter
	limit        ratelimit.Limit
	exemptAdmins bool
}

// NewRateLimitStage 创建限流阶段
func NewRateLimitStage(limiter ratelimit.Limiter, limit ratelimit.Limit, exemptAdmins bool) *RateLimitStage {
	return &RateLimitStage{limiter: limiter, limit: limit, exemptAdmins: exemptAdmins}
}

// Name 实现 Stage 接口
func (s *RateLimitStage) Name() string {
	return "rate_limiter"
}

// Check 实现 Stage 接口
func (s *RateLimitStage) Check(ctx context.Context, pc *PipelineContext) error {
	if s.exemptAdmins && pc.Identity.Role == RoleSuperAdmin {
		return nil
	}

	key := fmt.Sprintf("notify:create:%s", pc.Identity.ID)

	res, err := s.limiter.Allow(ctx, key, s.limit)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}

	if !res.Allowed {
		return &domain.ThrottledError{RetryAfter: res.RetryAfter}
	}

	return nil
}
