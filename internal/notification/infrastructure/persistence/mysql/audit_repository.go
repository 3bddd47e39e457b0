package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/db"
)

// auditRepository 审计日志仓储，仅追加写入
type auditRepository struct {
	db *db.DB
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(database *db.DB) domain.AuditLogger {
	return &auditRepository{db: database}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
