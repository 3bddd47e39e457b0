package domain

import (
	"errors"
	"fmt"
	"time"
)

// 管线错误分类。
// ValidationRejected/Throttled/Suppressed 同步返回给调用方；
// 渠道投递失败就地恢复，不影响已落库的通知记录
var (
	// ErrValidationRejected 内容非法或超限，永久性错误，调用方需修正输入
	ErrValidationRejected = errors.New("validation rejected")
	// ErrThrottled 触发限流，暂时性错误，可在 retry-after 后重试
	ErrThrottled = errors.New("throttled")
	// ErrSuppressed 命中去重抑制，语义同限流但审计原因不同
	ErrSuppressed = errors.New("suppressed")
	// ErrChannelDeliveryFailed 渠道投递失败，已记录，不使创建调用失败
	ErrChannelDeliveryFailed = errors.New("channel delivery failed")
	// ErrIdentityUnauthorized 实时连接鉴权失败，连接被拒绝
	ErrIdentityUnauthorized = errors.New("identity unauthorized")
	// ErrNotFound 通知不存在
	ErrNotFound = errors.New("notification not found")
	// ErrForbidden 非归属人且非超级管理员
	ErrForbidden = errors.New("operation forbidden")
)

// RejectionError 安全过滤拒绝，携带具体原因
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("validation rejected: %s", e.Reason)
}

// Is 支持 errors.Is(err, ErrValidationRejected)
func (e *RejectionError) Is(target error) bool {
	return target == ErrValidationRejected
}

// ThrottledError 限流拒绝，携带重试等待时间
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled: retry after %s", e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// SuppressedError 去重抑制，携带重试等待时间
type SuppressedError struct {
	RetryAfter time.Duration
}

func (e *SuppressedError) Error() string {
	return fmt.Sprintf("suppressed: dedup window exceeded, retry after %s", e.RetryAfter)
}

func (e *SuppressedError) Is(target error) bool {
	return target == ErrSuppressed
}
