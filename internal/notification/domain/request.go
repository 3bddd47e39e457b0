package domain

import (
	"time"

	"github.com/wyfcoding/marketnotify/pkg/utils"
)

// 标题与正文的长度上限。超限的请求被拒绝而非截断，截断可能掩盖关键信息
const (
	MaxTitleLength   = 200
	MaxMessageLength = 1000
)

// NotificationRequest 候选通知请求，由触发器产生，经管线裁决后才会落库
type NotificationRequest struct {
	// UserID 接收者用户 ID
	UserID string `json:"user_id"`
	// Type 通知类型
	Type NotificationType `json:"type"`
	// Category 通知分类，为空时按类型推导
	Category Category `json:"category,omitempty"`
	// Priority 优先级，为空时默认 medium
	Priority Priority `json:"priority,omitempty"`
	// Title 标题
	Title string `json:"title"`
	// Message 正文
	Message string `json:"message"`
	// Metadata 类型相关的结构化元数据
	Metadata map[string]any `json:"metadata,omitempty"`
	// ActionURL 可选的动作链接
	ActionURL string `json:"action_url,omitempty"`
	// ExpiresAt 可选的过期时间
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Normalize 填充分类与优先级的缺省值
func (r *NotificationRequest) Normalize() {
	if r.Type == "" {
		r.Type = TypeGeneral
	}
	if r.Category == "" {
		r.Category = DefaultCategory(r.Type)
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
}

// ContentHash 标题+正文的稳定哈希，作为去重键。
// 以内容而非类型为键：两个不同商品的低库存告警互不抑制，
// 同一条告警在窗口内反复重试则会被限制
func (r *NotificationRequest) ContentHash() string {
	return utils.SHA256Hash(r.Title + "\n" + r.Message)
}
