// Package testutil 提供测试用的内存数据库和 Redis
package testutil

import (
	"testing"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/infrastructure/database"
	"fnordcredit/internal/infrastructure/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 内存 SQLite，已完成迁移
// 只保留一个连接：内存库随连接存在，同时也让并发事务串行化
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewRedis 启动 miniredis 并返回客户端
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// Config 测试配置：最小 bcrypt 代价，较短的锁等待
func Config() *config.Config {
	cfg := config.Default()
	cfg.Security.BcryptCost = bcrypt.MinCost
	cfg.Ledger.LockRetryInterval = time.Millisecond
	cfg.Ledger.LockMaxRetries = 5000
	return cfg
}

func NewGuard(client *redis.Client, cfg *config.Config) *lock.Guard {
	return lock.NewGuard(client, cfg.Ledger.LockTTL, cfg.Ledger.LockRetryInterval, cfg.Ledger.LockMaxRetries)
}
