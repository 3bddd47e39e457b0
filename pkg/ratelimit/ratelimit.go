// Package ratelimit 提供按 key 的滑动窗口限流。
// 单实例部署使用进程内实现，多实例部署可切换为 Redis 实现，管线逻辑无需改动。
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查 key 的请求在给定规则下是否放行
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则
type Limit struct {
	// 窗口内允许的最大请求数
	Rate int
	// 窗口时长
	Period time.Duration
}

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RedisLimiter 基于 redis_rate 的限流实现，供多实例部署共享窗口状态
type RedisLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{limiter: redis_rate.NewLimiter(rdb)}
}

// Allow 实现 Limiter 接口
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Rate,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}
