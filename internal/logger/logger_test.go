package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fnordcredit/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "credit.log")

	log, closer, err := New(config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	log.Info().Int64("user_id", 7).Msg("credit changed")
	log.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":7`)
	assert.Contains(t, string(data), "credit changed")
	assert.False(t, strings.Contains(string(data), "hidden"))
}

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	log, closer, err := New(config.LogConfig{Level: "loud"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel(zerolog.DebugLevel))
	assert.Equal(t, gormlogger.Warn, GormLevel(zerolog.InfoLevel))
	assert.Equal(t, gormlogger.Error, GormLevel(zerolog.ErrorLevel))
	assert.Equal(t, gormlogger.Silent, GormLevel(zerolog.Disabled))
}
