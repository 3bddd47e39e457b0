package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
)

func newPipelineContext(req *domain.NotificationRequest) *PipelineContext {
	return &PipelineContext{
		Identity: Identity{ID: req.UserID},
		Request:  req,
		Now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSecurityFilterRejectsUnsafeContent(t *testing.T) {
	filter := NewSecurityFilter([]string{"https://marketplace.example.com"})

	tests := []struct {
		name    string
		title   string
		message string
	}{
		{"script 标签", "告警", "<script>alert(1)</script>"},
		{"大小写混合 script", "告警", "<ScRiPt>alert(1)"},
		{"带空白的 script", "告警", "<  script src=x>"},
		{"内联事件处理器", "告警", `<img onerror=alert(1)>`},
		{"iframe 标签", "告警", `<iframe src="https://evil.example">`},
		{"javascript 伪协议", "点击 javascript:alert(1)", "正文"},
		{"data 伪协议", "告警", "见 data:text/html;base64,xx"},
		{"标题中的危险内容", "<script>", "正文"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.NotificationRequest{UserID: "u-1", Title: tt.title, Message: tt.message}
			err := filter.Check(context.Background(), newPipelineContext(req))
			if !errors.Is(err, domain.ErrValidationRejected) {
				t.Fatalf("Check() error = %v, want validation rejection", err)
			}
		})
	}
}

func TestSecurityFilterLengthLimits(t *testing.T) {
	filter := NewSecurityFilter(nil)

	t.Run("标题超限拒绝", func(t *testing.T) {
		req := &domain.NotificationRequest{
			UserID: "u-1",
			Title:  strings.Repeat("八", domain.MaxTitleLength+1),
		}
		if err := filter.Check(context.Background(), newPipelineContext(req)); !errors.Is(err, domain.ErrValidationRejected) {
			t.Fatalf("Check() error = %v, want validation rejection", err)
		}
	})

	t.Run("正文超限拒绝", func(t *testing.T) {
		req := &domain.NotificationRequest{
			UserID:  "u-1",
			Title:   "标题",
			Message: strings.Repeat("字", domain.MaxMessageLength+1),
		}
		if err := filter.Check(context.Background(), newPipelineContext(req)); !errors.Is(err, domain.ErrValidationRejected) {
			t.Fatalf("Check() error = %v, want validation rejection", err)
		}
	})

	t.Run("多字节字符按字符数计", func(t *testing.T) {
		req := &domain.NotificationRequest{
			UserID: "u-1",
			Title:  strings.Repeat("八", domain.MaxTitleLength),
		}
		if err := filter.Check(context.Background(), newPipelineContext(req)); err != nil {
			t.Fatalf("title at exactly the limit should pass, got %v", err)
		}
	})
}

func TestSecurityFilterActionURL(t *testing.T) {
	filter := NewSecurityFilter([]string{"https://marketplace.example.com"})

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"相对链接放行", "/orders/123", false},
		{"协议相对链接拒绝", "//evil.example/x", true},
		{"允许清单内放行", "https://marketplace.example.com/orders/123", false},
		{"源站大小写不敏感", "HTTPS://MARKETPLACE.EXAMPLE.COM/x", false},
		{"清单外源站拒绝", "https://evil.example/x", true},
		{"非 http 协议拒绝", "ftp://marketplace.example.com/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.NotificationRequest{UserID: "u-1", Title: "标题", ActionURL: tt.url}
			err := filter.Check(context.Background(), newPipelineContext(req))
			if tt.wantErr && !errors.Is(err, domain.ErrValidationRejected) {
				t.Fatalf("Check() error = %v, want validation rejection", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Check() error = %v, want nil", err)
			}
		})
	}
}

func TestSecurityFilterActionURLHostOnlyEntry(t *testing.T) {
	filter := NewSecurityFilter([]string{"marketplace.example.com"})

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https 放行", "https://marketplace.example.com/orders/123", false},
		{"http 放行", "http://marketplace.example.com/x", false},
		{"主机大小写不敏感", "https://MARKETPLACE.EXAMPLE.COM/x", false},
		{"清单外主机拒绝", "https://evil.example/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &domain.NotificationRequest{UserID: "u-1", Title: "标题", ActionURL: tt.url}
			err := filter.Check(context.Background(), newPipelineContext(req))
			if tt.wantErr && !errors.Is(err, domain.ErrValidationRejected) {
				t.Fatalf("Check() error = %v, want validation rejection", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Check() error = %v, want nil", err)
			}
		})
	}
}

func TestSecurityFilterPreservesSurvivingContent(t *testing.T) {
	filter := NewSecurityFilter(nil)

	title := "【告警】 " + strings.Repeat("八", domain.MaxTitleLength-5)
	message := strings.Repeat("字", domain.MaxMessageLength-2) + " 。"
	req := &domain.NotificationRequest{UserID: "u-1", Title: title, Message: message}

	if err := filter.Check(context.Background(), newPipelineContext(req)); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	// 通过过滤的内容不允许任何改写或截断
	if req.Title != title {
		t.Errorf("title was mutated: got %q, want %q", req.Title, title)
	}
	if req.Message != message {
		t.Errorf("message was mutated: got %q, want %q", req.Message, message)
	}
}

func TestSecurityFilterNormalizesDefaults(t *testing.T) {
	filter := NewSecurityFilter(nil)
	req := &domain.NotificationRequest{UserID: "u-1", Title: "标题", Type: domain.TypeLowStock}

	if err := filter.Check(context.Background(), newPipelineContext(req)); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if req.Category != domain.CategoryProduct {
		t.Errorf("category = %q, want derived %q", req.Category, domain.CategoryProduct)
	}
	if req.Priority != domain.PriorityMedium {
		t.Errorf("priority = %q, want default %q", req.Priority, domain.PriorityMedium)
	}
}
