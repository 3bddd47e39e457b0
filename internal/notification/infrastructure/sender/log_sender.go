package sender

import (
	"context"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/logger"
)

// LogEmailSender 日志邮件发送器，未配置 SMTP 时使用
type LogEmailSender struct{}

// NewLogEmailSender 创建日志发送器
func NewLogEmailSender() domain.EmailSender {
	return &LogEmailSender{}
}

// Send 仅记录日志，不实际投递
func (s *LogEmailSender) Send(ctx context.Context, userID, subject, content string) error {
	logger.Info(ctx, "email delivery (log only)",
		"user_id", userID,
		"subject", subject,
		"content_length", len(content),
	)
	return nil
}
