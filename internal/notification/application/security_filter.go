package application

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/wyfcoding/marketnotify/internal/notification/domain"
)

// 可执行标记与危险 URL scheme 的检测模式。
// 过滤器只拒绝不清洗：静默改写会让上游数据问题被掩盖，也让审计失去依据
var (
	scriptTagPattern    = regexp.MustCompile(`(?i)<\s*script`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\son\w+\s*=`)
	embedTagPattern     = regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`)
	unsafeSchemePattern = regexp.MustCompile(`(?i)\b(javascript|vbscript|data)\s*:`)
)

// SecurityFilter 内容安全过滤阶段
type SecurityFilter struct {
	// allowedOrigins 动作链接允许的源站。条目为 "scheme://host" 时精确匹配，
	// 仅写主机名时 http 与 https 均放行；相对链接始终放行
	allowedOrigins []string
}

// NewSecurityFilter 创建内容安全过滤器
func NewSecurityFilter(allowedOrigins []string) *SecurityFilter {
	return &SecurityFilter{allowedOrigins: allowedOrigins}
}

// Name 实现 Stage 接口
func (f *SecurityFilter) Name() string {
	return "security_filter"
}

// Check 实现 Stage 接口。拒绝超限或含可执行标记的请求
func (f *SecurityFilter) Check(_ context.Context, pc *PipelineContext) error {
	req := pc.Request
	req.Normalize()

	if req.UserID == "" {
		return &domain.RejectionError{Reason: "recipient is required"}
	}
	if req.Title == "" {
		return &domain.RejectionError{Reason: "title is required"}
	}
	if len([]rune(req.Title)) > domain.MaxTitleLength {
		return &domain.RejectionError{Reason: fmt.Sprintf("title exceeds %d characters", domain.MaxTitleLength)}
	}
	if len([]rune(req.Message)) > domain.MaxMessageLength {
		return &domain.RejectionError{Reason: fmt.Sprintf("message exceeds %d characters", domain.MaxMessageLength)}
	}

	for _, text := range []string{req.Title, req.Message} {
		if reason := unsafeContent(text); reason != "" {
			return &domain.RejectionError{Reason: reason}
		}
	}

	if req.ActionURL != "" {
		if err := f.checkActionURL(req.ActionURL); err != nil {
			return err
		}
	}

	return nil
}

// unsafeContent 返回首个命中的危险模式说明，安全时返回空串
func unsafeContent(text string) string {
	switch {
	case scriptTagPattern.MatchString(text):
		return "content contains script tag"
	case eventHandlerPattern.MatchString(text):
		return "content contains inline event handler"
	case embedTagPattern.MatchString(text):
		return "content contains embedded frame or object tag"
	case unsafeSchemePattern.MatchString(text):
		return "content contains disallowed URL scheme"
	}
	return ""
}

// checkActionURL 相对链接放行，绝对链接要求 http(s) 且源站在允许清单内
func (f *SecurityFilter) checkActionURL(raw string) error {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &domain.RejectionError{Reason: "action URL is not a valid URL"}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &domain.RejectionError{Reason: fmt.Sprintf("action URL scheme %q is not allowed", u.Scheme)}
	}

	origin := u.Scheme + "://" + u.Host
	for _, allowed := range f.allowedOrigins {
		if strings.Contains(allowed, "://") {
			if strings.EqualFold(origin, allowed) {
				return nil
			}
			continue
		}
		if strings.EqualFold(u.Host, allowed) {
			return nil
		}
	}

	return &domain.RejectionError{Reason: fmt.Sprintf("action URL origin %q is not in the allow list", origin)}
}
