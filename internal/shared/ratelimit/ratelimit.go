// Package ratelimit 认证接口限流（固定窗口计数）
//
// 登录和找回密码是凭据爆破的主要入口，按客户端 IP 做固定窗口限流。
// Redis 不可用或未启用时限流关闭，不影响正常流程。
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter 限流器接口
type Limiter interface {
	// Allow 判断 key 在当前窗口内是否还允许一次请求
	Allow(ctx context.Context, key string) (bool, error)
}

// ====================
// Redis 固定窗口限流
// ====================

// RedisLimiter 基于 Redis INCR 的固定窗口限流器
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter 创建 Redis 限流器并验证连接
func NewRedisLimiter(addr, password string, db int, limit int64, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis/RateLimit] Connected to %s (limit=%d window=%s)", addr, limit, window)
	return &RedisLimiter{client: client, limit: limit, window: window}, nil
}

// Allow 计数并判断是否超限
// 第一次计数时设置窗口过期，窗口结束后计数自动清零。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire %s: %w", key, err)
		}
	}
	return count <= l.limit, nil
}

// Close 关闭 Redis 连接
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// ====================
// 内存限流（测试用）
// ====================

// MemoryLimiter 进程内固定窗口限流器，仅用于测试和单机开发
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int64
	window time.Duration
	counts map[string]*windowCount
}

type windowCount struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter 创建内存限流器
func NewMemoryLimiter(limit int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
	}
}

// Allow 计数并判断是否超限
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	wc, ok := l.counts[key]
	if !ok || now.After(wc.resetAt) {
		wc = &windowCount{resetAt: now.Add(l.window)}
		l.counts[key] = wc
	}
	wc.count++
	return wc.count <= l.limit, nil
}
