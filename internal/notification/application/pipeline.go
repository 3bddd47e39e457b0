// Package application 通知管线的应用服务层
package application

import (
	"context"
	"time"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
)

// Identity 已认证身份，由平台 REST 层或消息消费方提供
type Identity struct {
	ID   string
	Role string
}

// RoleSuperAdmin 超级管理员可豁免限流并操作任意用户的通知
const RoleSuperAdmin = "super_admin"

// PipelineContext 单次请求穿过管线的可变上下文
type PipelineContext struct {
	// Identity 触发方身份（通常与接收者一致）
	Identity Identity
	// Request 候选通知请求，安全过滤阶段会做规范化
	Request *domain.NotificationRequest
	// Profile 偏好解析阶段加载的用户偏好
	Profile *domain.PreferenceProfile
	// Decision 偏好解析阶段产出的渠道决策
	Decision domain.ChannelDecision
	// Now 管线进入时刻，各阶段共用同一时钟读数
	Now time.Time
}

// Stage 管线阶段。固定顺序组合，任一阶段返回错误即短路终止。
// 返回的错误携带终态语义（拒绝/限流/抑制），由驱动循环统一审计
type Stage interface {
	// Name 阶段名，用于审计与日志
	Name() string
	// Check 检查并可能修改管线上下文
	Check(ctx context.Context, pc *PipelineContext) error
}

// runStages 顺序执行各阶段，返回首个短路错误及其所属阶段名
func runStages(ctx context.Context, stages []Stage, pc *PipelineContext) (string, error) {
	for _, stage := range stages {
		if err := stage.Check(ctx, pc); err != nil {
			return stage.Name(), err
		}
	}
	return "", nil
}
