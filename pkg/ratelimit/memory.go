package ratelimit

import (
	"context"
	"sync"
	"time"
)

// 分片数量。不同身份散落在不同分片，彼此不争锁
const shardCount = 64

// MemoryLimiter 进程内滑动窗口限流器。
// 每个 key 维护窗口内的请求时间戳列表，检查时裁剪过期项。
// 状态不持久化，进程重启后窗口清零。
type MemoryLimiter struct {
	shards [shardCount]*memoryShard
	now    func() time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{now: time.Now}
	for i := range l.shards {
		l.shards[i] = &memoryShard{windows: make(map[string][]time.Time)}
	}
	return l
}

// NewMemoryLimiterWithClock 创建使用自定义时钟的限流器，供测试注入
func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	l := NewMemoryLimiter()
	l.now = now
	return l
}

// Allow 实现 Limiter 接口
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	shard := l.shards[fnv32(key)%shardCount]
	now := l.now()
	cutoff := now.Add(-limit.Period)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	window := shard.windows[key]

	// 裁剪窗口外的时间戳，顺带摊销内存回收
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit.Rate {
		shard.windows[key] = kept
		// 最早的一条离开窗口后才有配额
		retryAfter := kept[0].Add(limit.Period).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	kept = append(kept, now)
	shard.windows[key] = kept

	return &Result{
		Allowed:   true,
		Remaining: limit.Rate - len(kept),
	}, nil
}

// fnv32 FNV-1a 哈希，用于分片选择
func fnv32(key string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= prime32
	}
	return h
}
