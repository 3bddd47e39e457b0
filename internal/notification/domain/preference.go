package domain

import (
	"fmt"
	"time"
)

// ChannelPreference 单渠道偏好：渠道默认开关 + 分类/类型两级覆写。
// 覆写精度从高到低：类型 > 分类 > 渠道默认
type ChannelPreference struct {
	// Enabled 渠道默认开关
	Enabled bool `json:"enabled"`
	// Types 按通知类型覆写
	Types map[NotificationType]bool `json:"types,omitempty"`
	// Categories 按通知分类覆写
	Categories map[Category]bool `json:"categories,omitempty"`
}

// resolve 按精度顺序解析渠道开关
func (p ChannelPreference) resolve(t NotificationType, c Category) bool {
	enabled := p.Enabled
	if v, ok := p.Categories[c]; ok {
		enabled = v
	}
	if v, ok := p.Types[t]; ok {
		enabled = v
	}
	return enabled
}

// QuietHours 静默时段：当地时间 [Start, End)，支持跨夜（Start > End）
type QuietHours struct {
	Enabled bool `json:"enabled"`
	// Start/End "HH:MM" 24 小时制
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	// Timezone IANA 时区名，如 Asia/Shanghai；空值按 UTC
	Timezone string `json:"timezone,omitempty"`
}

// Contains 判断 now 是否落在静默时段内
func (q QuietHours) Contains(now time.Time) (bool, error) {
	if !q.Enabled || q.Start == "" || q.End == "" {
		return false, nil
	}

	loc := time.UTC
	if q.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(q.Timezone)
		if err != nil {
			return false, fmt.Errorf("invalid quiet hours timezone %q: %w", q.Timezone, err)
		}
	}

	start, err := parseMinuteOfDay(q.Start)
	if err != nil {
		return false, err
	}
	end, err := parseMinuteOfDay(q.End)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start == end {
		return false, nil
	}
	if start < end {
		return minute >= start && minute < end, nil
	}
	// 跨夜窗口：[start, 24:00) ∪ [00:00, end)
	return minute >= start || minute < end, nil
}

func parseMinuteOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

// PreferenceProfile 用户通知偏好
type PreferenceProfile struct {
	// Enabled 全局开关。关闭时所有渠道一律关闭
	Enabled bool `json:"enabled"`
	// Email 邮件渠道偏好
	Email ChannelPreference `json:"email"`
	// Realtime 实时推送渠道偏好
	Realtime ChannelPreference `json:"realtime"`
	// Quiet 静默时段
	Quiet QuietHours `json:"quiet_hours"`
	// Digest 摘要模式透传标记，本核心不展开
	Digest bool `json:"digest"`
}

// DefaultProfile 系统默认偏好：全渠道开启，无静默时段
func DefaultProfile() *PreferenceProfile {
	return &PreferenceProfile{
		Enabled:  true,
		Email:    ChannelPreference{Enabled: true},
		Realtime: ChannelPreference{Enabled: true},
	}
}

// ChannelDecision 渠道解析结果
type ChannelDecision struct {
	// Store 站内记录是否落库
	Store bool
	// Email / Realtime 渠道是否投递
	Email    bool
	Realtime bool
	// Deferred 命中静默时段：站内记录照常落库，邮件与实时推送延迟。
	// 本核心不做静默结束后的补投，用户下次登录通过站内记录获取
	Deferred bool
}

// ResolveChannels 解析请求在当前时刻的渠道投递决策。
// 全局关闭直接全渠道关闭；否则从渠道默认出发，依次应用分类覆写与类型覆写；
// 静默时段独立计算，不影响开关本身
func (p *PreferenceProfile) ResolveChannels(req *NotificationRequest, now time.Time) (ChannelDecision, error) {
	if !p.Enabled {
		return ChannelDecision{}, nil
	}

	decision := ChannelDecision{
		Store:    true,
		Email:    p.Email.resolve(req.Type, req.Category),
		Realtime: p.Realtime.resolve(req.Type, req.Category),
	}

	quiet, err := p.Quiet.Contains(now)
	if err != nil {
		return decision, err
	}
	decision.Deferred = quiet

	return decision, nil
}
