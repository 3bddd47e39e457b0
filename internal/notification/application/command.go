package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/metrics"
	"github.com/wyfcoding/marketnotify/pkg/utils"
)

// 管线终态，用于审计与指标
const (
	outcomeDelivered  = "delivered"
	outcomeRejected   = "rejected"
	outcomeThrottled  = "throttled"
	outcomeSuppressed = "suppressed"
	outcomeDisabled   = "disabled"
	// outcomeError 阶段内部的基础设施故障，不属于管线决策
	outcomeError = "error"
)

// ProcessResult 管线处理结果
type ProcessResult struct {
	// Outcome 终态：delivered 或 disabled（拒绝/限流/抑制以错误返回）
	Outcome string
	// Notification 已落库的通知，disabled 时为 nil
	Notification *domain.Notification
}

// NotificationCommand 处理通知相关的命令操作
type NotificationCommand struct {
	repo      domain.NotificationRepository
	prefs     domain.PreferenceRepository
	audit     domain.AuditLogger
	email     domain.EmailSender
	realtime  domain.RealtimePublisher
	events    domain.EventPublisher
	metrics   *metrics.Metrics
	stages    []Stage
	idGen     *utils.SnowflakeID
	retention time.Duration
	now       func() time.Time
}

// NewNotificationCommand 创建命令服务。stages 为固定顺序的管线阶段
func NewNotificationCommand(
	repo domain.NotificationRepository,
	prefs domain.PreferenceRepository,
	audit domain.AuditLogger,
	email domain.EmailSender,
	realtime domain.RealtimePublisher,
	events domain.EventPublisher,
	m *metrics.Metrics,
	stages []Stage,
	retention time.Duration,
) *NotificationCommand {
	return &NotificationCommand{
		repo:      repo,
		prefs:     prefs,
		audit:     audit,
		email:     email,
		realtime:  realtime,
		events:    events,
		metrics:   m,
		stages:    stages,
		idGen:     utils.NewSnowflakeID(1),
		retention: retention,
		now:       time.Now,
	}
}

// Process 将候选请求送入管线：安全过滤 → 去重抑制 → 限流 → 偏好解析 → 调度投递。
// 拒绝/限流/抑制以错误同步返回；渠道投递失败就地记录，不使调用失败
func (c *NotificationCommand) Process(ctx context.Context, identity Identity, req *domain.NotificationRequest) (*ProcessResult, error) {
	start := c.now()
	defer func() {
		c.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	pc := &PipelineContext{
		Identity: identity,
		Request:  req,
		Now:      start,
	}

	if stageName, err := runStages(ctx, c.stages, pc); err != nil {
		outcome := classifyStageError(err)
		c.metrics.PipelineDecisionsTotal.WithLabelValues(outcome).Inc()

		// 基础设施故障不是管线决策，按失败审计，也不发布抑制事件
		operation := domain.AuditSuppress
		if outcome == outcomeError {
			operation = domain.AuditFail
		}
		c.appendAudit(ctx, &domain.AuditEntry{
			UserID:           identity.ID,
			Operation:        operation,
			Decision:         fmt.Sprintf("%s at %s: %v", outcome, stageName, err),
			NotificationType: req.Type,
			OccurredAt:       c.now(),
		})
		if outcome != outcomeError {
			c.publishEvent(ctx, &domain.LifecycleEvent{
				Kind:       domain.EventNotificationSuppressed,
				UserID:     req.UserID,
				Type:       req.Type,
				Reason:     err.Error(),
				OccurredOn: c.now(),
			})
		}
		return nil, err
	}

	// 全局偏好关闭：所有渠道一律关闭，不落库
	if !pc.Decision.Store {
		c.metrics.PipelineDecisionsTotal.WithLabelValues(outcomeDisabled).Inc()
		c.appendAudit(ctx, &domain.AuditEntry{
			UserID:           identity.ID,
			Operation:        domain.AuditSuppress,
			Decision:         "disabled: notifications globally disabled by user preference",
			NotificationType: req.Type,
			OccurredAt:       c.now(),
		})
		return &ProcessResult{Outcome: outcomeDisabled}, nil
	}

	notification := c.buildNotification(req, pc)

	if err := c.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	c.appendAudit(ctx, &domain.AuditEntry{
		UserID:           identity.ID,
		Operation:        domain.AuditCreate,
		Decision:         fmt.Sprintf("accepted: channels store=%t email=%t realtime=%t deferred=%t", pc.Decision.Store, pc.Decision.Email, pc.Decision.Realtime, pc.Decision.Deferred),
		NotificationID:   notification.NotificationID,
		NotificationType: notification.Type,
		OccurredAt:       c.now(),
	})
	c.publishEvent(ctx, &domain.LifecycleEvent{
		Kind:           domain.EventNotificationCreated,
		NotificationID: notification.NotificationID,
		UserID:         notification.UserID,
		Type:           notification.Type,
		OccurredOn:     c.now(),
	})

	// 过了限流阶段就不再支持中途取消，投递进行到各渠道的明确结果为止
	c.dispatch(context.WithoutCancel(ctx), notification, pc.Decision)
	c.metrics.PipelineDecisionsTotal.WithLabelValues(outcomeDelivered).Inc()

	return &ProcessResult{Outcome: outcomeDelivered, Notification: notification}, nil
}

// buildNotification 从已接受的请求构建持久化实体
func (c *NotificationCommand) buildNotification(req *domain.NotificationRequest, pc *PipelineContext) *domain.Notification {
	expiresAt := req.ExpiresAt
	if expiresAt == nil && c.retention > 0 {
		t := pc.Now.Add(c.retention)
		expiresAt = &t
	}

	return &domain.Notification{
		NotificationID: fmt.Sprintf("%d", c.idGen.Generate()),
		UserID:         req.UserID,
		Type:           req.Type,
		Category:       req.Category,
		Priority:       req.Priority,
		Title:          req.Title,
		Message:        req.Message,
		Metadata:       req.Metadata,
		ActionURL:      req.ActionURL,
		ExpiresAt:      expiresAt,
		Outcomes:       map[domain.Channel]domain.ChannelOutcome{},
	}
}

// dispatch 并发扇出到各渠道。渠道彼此隔离：
// 邮件投递缓慢或失败不得拖慢实时推送，失败就地记录并审计，不回滚已落库记录
func (c *NotificationCommand) dispatch(ctx context.Context, n *domain.Notification, decision domain.ChannelDecision) {
	var mu sync.Mutex
	outcomes := map[domain.Channel]domain.ChannelOutcome{
		domain.ChannelStore: domain.OutcomeDelivered,
	}
	record := func(ch domain.Channel, outcome domain.ChannelOutcome) {
		mu.Lock()
		outcomes[ch] = outcome
		mu.Unlock()
		c.metrics.ChannelDeliveriesTotal.WithLabelValues(string(ch), string(outcome)).Inc()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(domain.ChannelEmail, c.attemptEmail(ctx, n, decision))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(domain.ChannelRealtime, c.attemptRealtime(ctx, n, decision))
	}()

	wg.Wait()

	n.Outcomes = outcomes
	if err := c.repo.UpdateOutcomes(ctx, n.NotificationID, outcomes); err != nil {
		logger.Error(ctx, "failed to record channel outcomes", "notification_id", n.NotificationID, "error", err)
	}

	c.appendAudit(ctx, &domain.AuditEntry{
		UserID:           n.UserID,
		Operation:        domain.AuditDeliver,
		Decision:         fmt.Sprintf("delivered: store=%s email=%s realtime=%s", outcomes[domain.ChannelStore], outcomes[domain.ChannelEmail], outcomes[domain.ChannelRealtime]),
		NotificationID:   n.NotificationID,
		NotificationType: n.Type,
		OccurredAt:       c.now(),
	})
	c.publishEvent(ctx, &domain.LifecycleEvent{
		Kind:           domain.EventNotificationDelivered,
		NotificationID: n.NotificationID,
		UserID:         n.UserID,
		Type:           n.Type,
		Outcomes:       outcomes,
		OccurredOn:     c.now(),
	})
}

// attemptEmail 邮件渠道投递
func (c *NotificationCommand) attemptEmail(ctx context.Context, n *domain.Notification, decision domain.ChannelDecision) domain.ChannelOutcome {
	if !decision.Email {
		return domain.OutcomeDisabled
	}
	if decision.Deferred {
		return domain.OutcomeDeferred
	}

	subject, body := renderEmail(n)
	if err := c.email.Send(ctx, n.UserID, subject, body); err != nil {
		logger.Error(ctx, "email delivery failed", "notification_id", n.NotificationID, "error", err)
		c.appendAudit(ctx, &domain.AuditEntry{
			UserID:           n.UserID,
			Operation:        domain.AuditFail,
			Decision:         fmt.Sprintf("email delivery failed: %v", err),
			NotificationID:   n.NotificationID,
			NotificationType: n.Type,
			OccurredAt:       c.now(),
		})
		c.publishEvent(ctx, &domain.LifecycleEvent{
			Kind:           domain.EventNotificationFailed,
			NotificationID: n.NotificationID,
			UserID:         n.UserID,
			Type:           n.Type,
			Reason:         fmt.Sprintf("email: %v", err),
			OccurredOn:     c.now(),
		})
		return domain.OutcomeFailed
	}

	return domain.OutcomeDelivered
}

// attemptRealtime 实时推送渠道投递。无在线连接记为 no_active_connection，非失败
func (c *NotificationCommand) attemptRealtime(ctx context.Context, n *domain.Notification, decision domain.ChannelDecision) domain.ChannelOutcome {
	if !decision.Realtime {
		return domain.OutcomeDisabled
	}
	if decision.Deferred {
		return domain.OutcomeDeferred
	}

	delivered, err := c.realtime.Publish(ctx, n.UserID, n)
	if err != nil {
		logger.Error(ctx, "realtime delivery failed", "notification_id", n.NotificationID, "error", err)
		c.appendAudit(ctx, &domain.AuditEntry{
			UserID:           n.UserID,
			Operation:        domain.AuditFail,
			Decision:         fmt.Sprintf("realtime delivery failed: %v", err),
			NotificationID:   n.NotificationID,
			NotificationType: n.Type,
			OccurredAt:       c.now(),
		})
		return domain.OutcomeFailed
	}
	if !delivered {
		return domain.OutcomeNoActiveConnection
	}

	return domain.OutcomeDelivered
}

// renderEmail 渲染邮件主题与正文
func renderEmail(n *domain.Notification) (string, string) {
	body := n.Message
	if n.ActionURL != "" {
		body += "\n\n" + n.ActionURL
	}
	return n.Title, body
}

// MarkRead 标记已读。归属人或超级管理员可操作
func (c *NotificationCommand) MarkRead(ctx context.Context, identity Identity, notificationID string) error {
	if _, err := c.authorize(ctx, identity, notificationID); err != nil {
		return err
	}
	return c.repo.MarkRead(ctx, notificationID, c.now())
}

// MarkUnread 显式回退为未读
func (c *NotificationCommand) MarkUnread(ctx context.Context, identity Identity, notificationID string) error {
	if _, err := c.authorize(ctx, identity, notificationID); err != nil {
		return err
	}
	return c.repo.MarkUnread(ctx, notificationID)
}

// Delete 删除通知。归属人或超级管理员可操作
func (c *NotificationCommand) Delete(ctx context.Context, identity Identity, notificationID string) error {
	if _, err := c.authorize(ctx, identity, notificationID); err != nil {
		return err
	}
	return c.repo.Delete(ctx, notificationID)
}

// SavePreferences 保存用户偏好
func (c *NotificationCommand) SavePreferences(ctx context.Context, identity Identity, userID string, profile *domain.PreferenceProfile) error {
	if identity.ID != userID && identity.Role != RoleSuperAdmin {
		return domain.ErrForbidden
	}
	return c.prefs.Save(ctx, userID, profile)
}

// SweepExpired 清理已过期的通知记录，返回删除条数。
// 由后台定时任务调用，与请求路径解耦
func (c *NotificationCommand) SweepExpired(ctx context.Context) (int64, error) {
	defer logger.LogDuration(ctx, "expired notification sweep")()

	count, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired notifications: %w", err)
	}
	if count > 0 {
		c.metrics.ExpiredSweptTotal.Add(float64(count))
		logger.Info(ctx, "expired notifications swept", "count", count)
	}
	return count, nil
}

// authorize 取回通知并校验操作权限
func (c *NotificationCommand) authorize(ctx context.Context, identity Identity, notificationID string) (*domain.Notification, error) {
	n, err := c.repo.GetByNotificationID(ctx, notificationID)
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

// appendAudit 审计写入失败只记录日志，不阻断管线
func (c *NotificationCommand) appendAudit(ctx context.Context, entry *domain.AuditEntry) {
	entry.AuditID = uuid.New().String()
	if err := c.audit.Append(ctx, entry); err != nil {
		logger.Error(ctx, "failed to append audit entry", "operation", entry.Operation, "error", err)
	}
}

// publishEvent 事件发布失败只记录日志，不阻断管线
func (c *NotificationCommand) publishEvent(ctx context.Context, event *domain.LifecycleEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, event); err != nil {
		logger.Error(ctx, "failed to publish lifecycle event", "kind", event.Kind, "error", err)
	}
}

// classifyStageError 将阶段错误映射为终态标签
func classifyStageError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidationRejected):
		return outcomeRejected
	case errors.Is(err, domain.ErrThrottled):
		return outcomeThrottled
	case errors.Is(err, domain.ErrSuppressed):
		return outcomeSuppressed
	default:
		return outcomeError
	}
}
