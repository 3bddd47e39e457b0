// Package sender 邮件渠道发送器实现
package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
	"github.com/wyfcoding/marketnotify/pkg/config"
	"github.com/wyfcoding/marketnotify/pkg/logger"
	"github.com/wyfcoding/marketnotify/pkg/utils"
)

// SMTPSender 基于标准 SMTP 协议的邮件发送器
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg config.EmailConfig) domain.EmailSender {
	return &SMTPSender{cfg: cfg}
}

// Send 投递邮件。收件地址由用户 ID 与配置的收件域拼接
func (s *SMTPSender) Send(ctx context.Context, userID, subject, content string) error {
	target := fmt.Sprintf("%s@%s", userID, s.cfg.RecipientDomain)
	logger.Info(ctx, "sending email", "target", target, "subject", subject)

	msg := []byte("From: " + s.cfg.From + "\r\n" +
		"To: " + target + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		content + "\r\n")

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	// SMTP 连接偶发失败，短暂退避后重试
	err := utils.Retry(3, time.Second, func() error {
		return smtp.SendMail(addr, auth, s.cfg.From, []string{target}, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
