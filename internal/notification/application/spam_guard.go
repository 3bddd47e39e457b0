package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

// SpamGuard 近重复通知抑制阶段。
// 去重键是 (身份, 内容哈希)：不同商品的两条低库存告警互不抑制，
// 相同内容在窗口内反复提交则被限制。
// 窗口状态通过 Limiter 接口维护，单实例默认进程内实现
type SpamGuard struct {
	limiter ratelimit.Limiter
	limit   ratelimit.Limit
}

// NewSpamGuard 创建去重抑制阶段
func NewSpamGuard(limiter ratelimit.Limiter, limit ratelimit.Limit) *SpamGuard {
	return &SpamGuard{limiter: limiter, limit: limit}
}

// Name 实现 Stage 接口
func (g *SpamGuard) Name() string {
	return "spam_guard"
}

// Check 实现 Stage 接口
func (g *SpamGuard) Check(ctx context.Context, pc *PipelineContext) error {
	return g.Admit(ctx, pc.Identity.ID, pc.Request.ContentHash())
}

// Admit 检查 (身份, 内容哈希) 在滑动窗口内的投递配额
func (g *SpamGuard) Admit(ctx context.Context, identity, contentHash string) error {
	key := fmt.Sprintf("dedup:%s:%s", identity, contentHash)

	res, err := g.limiter.Allow(ctx, key, g.limit)
	if err != nil {
		return fmt.Errorf("dedup check failed: %w", err)
	}

	if !res.Allowed {
		return &domain.SuppressedError{RetryAfter: res.RetryAfter}
	}

	return nil
}
