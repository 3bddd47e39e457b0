package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/logger"
)

// PreferenceStage 偏好解析阶段。
// 加载接收者偏好（未配置时使用系统默认），产出渠道投递决策。
// 全局关闭不在此处短路，由调度方统一处理终态与审计
type PreferenceStage struct {
	prefs domain.PreferenceRepository
	// defaultQuiet 用户未配置偏好时适用的部署级静默时段（可为零值）
	defaultQuiet domain.QuietHours
}

// NewPreferenceStage 创建偏好解析阶段
func NewPreferenceStage(prefs domain.PreferenceRepository, defaultQuiet domain.QuietHours) *PreferenceStage {
	return &PreferenceStage{prefs: prefs, defaultQuiet: defaultQuiet}
}

// Name 实现 Stage 接口
func (s *PreferenceStage) Name() string {
	return "preference_resolver"
}

// Check 实现 Stage 接口
func (s *PreferenceStage) Check(ctx context.Context, pc *PipelineContext) error {
	profile, err := s.prefs.Get(ctx, pc.Request.UserID)
	if err != nil {
		return fmt.Errorf("failed to load preference profile: %w", err)
	}
	if profile == nil {
		profile = domain.DefaultProfile()
		profile.Quiet = s.defaultQuiet
	}
	pc.Profile = profile

	decision, err := profile.ResolveChannels(pc.Request, pc.Now)
	if err != nil {
		// 静默时段配置损坏时按无静默处理，不阻断投递
		logger.Warn(ctx, "quiet hours resolution failed, treating as outside quiet hours",
			"user_id", pc.Request.UserID,
			"error", err,
		)
	}
	pc.Decision = decision

	return nil
}
