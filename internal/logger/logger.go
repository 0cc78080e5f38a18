package logger

import (
	"io"
	"os"
	"path/filepath"

	"fnordcredit/internal/config"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// New 创建日志实例：控制台输出 + 日志文件（JSON 行）
// 返回的 io.Closer 用于关闭日志文件，未配置文件时为空操作。
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), nil, err
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, f)
		closer = f
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return log, closer, nil
}

// GormLevel 将 zerolog 级别映射到 gorm 日志级别
func GormLevel(level zerolog.Level) gormlogger.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return gormlogger.Info
	case level <= zerolog.WarnLevel:
		return gormlogger.Warn
	case level < zerolog.Disabled:
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
