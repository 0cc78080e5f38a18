package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 余额变动是"读余额 -> 计算 -> 写流水 -> 写余额"的多步操作，
// 同一用户的两个并发请求如果交错执行会丢失其中一次更新。
// 按用户加锁后，同一用户的变动串行执行，不同用户之间互不影响。
//
// 加锁：SET key value NX PX ttl
//   - value 为本次持有者的随机标识，释放时校验，避免删除别人的锁
//   - 过期时间保证持有者崩溃后锁能自动释放
//
// 释放：Lua 脚本保证"比较 + 删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// 锁已过期或已被他人持有时返回 ErrLockExpired，不会删除别人的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 作用域锁：按用户 / 按用户名
// ============================================================================

// UserLockKey 余额与资料变更共用的用户维度锁
func UserLockKey(userID int64) string {
	return fmt.Sprintf("credit:lock:user:%d", userID)
}

// NameLockKey 用户名唯一性检查 + 写入的锁
func NameLockKey(name string) string {
	return "credit:lock:name:" + name
}

// Guard 持有 Redis 客户端和重试策略，按作用域执行临界区
type Guard struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewGuard(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *Guard {
	return &Guard{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// WithUser 在用户锁内执行 fn
func (g *Guard) WithUser(ctx context.Context, userID int64, fn func() error) error {
	return g.with(ctx, []string{UserLockKey(userID)}, fn)
}

// WithName 在用户名锁内执行 fn
func (g *Guard) WithName(ctx context.Context, name string, fn func() error) error {
	return g.with(ctx, []string{NameLockKey(name)}, fn)
}

// WithUserAndName 依次获取用户锁和用户名锁，用于改名
// 固定先用户后用户名的顺序，避免不同请求之间互相等待
func (g *Guard) WithUserAndName(ctx context.Context, userID int64, name string, fn func() error) error {
	return g.with(ctx, []string{UserLockKey(userID), NameLockKey(name)}, fn)
}

func (g *Guard) with(ctx context.Context, keys []string, fn func() error) error {
	owner := uuid.NewString()
	held := make([]*DistributedLock, 0, len(keys))
	defer func() {
		// 反向释放；请求 ctx 可能已取消，释放时使用独立的超时
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock(releaseCtx)
		}
	}()

	for _, key := range keys {
		l := NewDistributedLock(g.client, key, owner, g.ttl)
		if err := l.Lock(ctx, g.retryInterval, g.maxRetries); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		held = append(held, l)
	}
	return fn()
}
