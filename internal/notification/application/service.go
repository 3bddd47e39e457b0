package application

import (
	"context"
	"time"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/config"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/metrics"
	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

// Options 服务装配参数
type Options struct {
	Repo     domain.NotificationRepository
	Prefs    domain.PreferenceRepository
	Audit    domain.AuditLogger
	Email    domain.EmailSender
	Realtime domain.RealtimePublisher
	Events   domain.EventPublisher
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Notify   config.NotifyConfig
}

// Service 通知应用服务，聚合命令与查询
type Service struct {
	*NotificationCommand
	*NotificationQuery

	sweepInterval time.Duration
}

// NewService 装配通知服务及管线阶段
func NewService(opts Options) *Service {
	stages := []Stage{
		NewSecurityFilter(opts.Notify.AllowedActionOrigins),
		NewSpamGuard(opts.Limiter, ratelimit.Limit{
			Rate:   opts.Notify.DedupMaxPerWindow,
			Period: opts.Notify.DedupWindow(),
		}),
		NewRateLimitStage(opts.Limiter, ratelimit.Limit{
			Rate:   opts.Notify.RateMaxPerWindow,
			Period: opts.Notify.RateWindow(),
		}, opts.Notify.ExemptAdmins),
		NewPreferenceStage(opts.Prefs, domain.QuietHours{
			Enabled: opts.Notify.QuietHoursDefaultStart != "" && opts.Notify.QuietHoursDefaultEnd != "",
			Start:   opts.Notify.QuietHoursDefaultStart,
			End:     opts.Notify.QuietHoursDefaultEnd,
		}),
	}

	retention := time.Duration(opts.Notify.RetentionDays) * 24 * time.Hour

	return &Service{
		NotificationCommand: NewNotificationCommand(
			opts.Repo,
			opts.Prefs,
			opts.Audit,
			opts.Email,
			opts.Realtime,
			opts.Events,
			opts.Metrics,
			stages,
			retention,
		),
		NotificationQuery: NewNotificationQuery(opts.Repo, opts.Prefs),
		sweepInterval:     opts.Notify.SweepInterval(),
	}
}

// StartSweeper 启动后台过期清理任务，ctx 取消后退出
func (s *Service) StartSweeper(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil {
					logger.Error(ctx, "expired notification sweep failed", "error", err)
				}
			}
		}
	}()
}
