package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AuditOperation 审计操作类型
type AuditOperation string

const (
	AuditCreate   AuditOperation = "create"   // 触发并接受
	AuditSuppress AuditOperation = "suppress" // 被拒绝/限流/抑制
	AuditDeliver  AuditOperation = "deliver"  // 渠道投递结果
	AuditFail     AuditOperation = "fail"     // 渠道投递失败
)

// AuditEntry 管线决策的追加式审计记录。
// 每个终态恰好写入一条，携带足以还原决策依据的上下文
type AuditEntry struct {
	gorm.Model
	// AuditID 审计记录业务 ID
	AuditID string `gorm:"column:audit_id;type:varchar(36);uniqueIndex;not null" json:"audit_id"`
	// UserID 关联的身份
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// Operation 操作类型
	Operation AuditOperation `gorm:"column:operation;type:varchar(16);index;not null" json:"operation"`
	// Decision 决策说明，如 "suppressed: dedup window exceeded, retryAfter=180s"
	Decision string `gorm:"column:decision;type:varchar(500);not null" json:"decision"`
	// NotificationID 关联的通知 ID，未落库的决策为空
	NotificationID string `gorm:"column:notification_id;type:varchar(32);index" json:"notification_id,omitempty"`
	// NotificationType 触发的通知类型
	NotificationType NotificationType `gorm:"column:notification_type;type:varchar(32)" json:"notification_type,omitempty"`
	// OccurredAt 决策时间
	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

// TableName 指定表名
func (AuditEntry) TableName() string {
	return "notification_audit"
}

// AuditLogger 追加式审计日志接口。管线只写不读，读取由外部运维消费方负责
type AuditLogger interface {
	Append(ctx context.Context, entry *AuditEntry) error
}
