package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // 每秒请求数，0 表示不限流
	RateBurst int     `mapstructure:"rate_burst"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 拼接 go-sql-driver 连接串
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditEvents string `mapstructure:"credit_events"`
}

// LedgerConfig 账本行为相关配置
type LedgerConfig struct {
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries    int           `mapstructure:"lock_max_retries"`
	CascadeDelete     bool          `mapstructure:"cascade_delete"` // 删除用户时是否同时删除流水
	AuditInterval     time.Duration `mapstructure:"audit_interval"`
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize   int           `mapstructure:"outbox_batch_size"`
	OutboxMaxRetry    int           `mapstructure:"outbox_max_retry"`
}

type SecurityConfig struct {
	// LegacyTokenPinCheck 为 true 时，PIN 与用户 token 字面相等也判定为错误（兼容旧服务行为）
	LegacyTokenPinCheck bool `mapstructure:"legacy_token_pin_check"`
	BcryptCost          int  `mapstructure:"bcrypt_cost"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "fnordcredit")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.credit_events", "credit_events")

	v.SetDefault("ledger.lock_ttl", 30*time.Second)
	v.SetDefault("ledger.lock_retry_interval", 100*time.Millisecond)
	v.SetDefault("ledger.lock_max_retries", 30)
	v.SetDefault("ledger.cascade_delete", false)
	v.SetDefault("ledger.audit_interval", 10*time.Minute)
	v.SetDefault("ledger.outbox_interval", 500*time.Millisecond)
	v.SetDefault("ledger.outbox_batch_size", 100)
	v.SetDefault("ledger.outbox_max_retry", 5)

	v.SetDefault("security.legacy_token_pin_check", true)
	v.SetDefault("security.bcrypt_cost", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "credit.log")
}

// LoadConfig 加载配置文件
//
// 加载顺序：默认值 -> 配置文件 -> .env / 环境变量（FNORD_MYSQL_HOST 对应 mysql.host）。
// 配置文件不存在时只使用默认值。
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FNORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return cfg, nil
}

// Default 仅由默认值构成的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
