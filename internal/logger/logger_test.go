package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aliasbox/backend/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("生产模式输出JSON", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewLogger(Config{Level: "info", Output: zapcore.AddSync(&buf)})
		require.NoError(t, err)

		log.Debug("hidden")
		log.Info("record created", zap.Int64("id", 7))
		require.NoError(t, log.Sync())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "record created", entry["message"])
		assert.EqualValues(t, 7, entry["id"])
		assert.Contains(t, entry, "timestamp")
	})

	t.Run("非法级别回退到info", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewLogger(Config{Level: "verbose", Output: zapcore.AddSync(&buf)})
		require.NoError(t, err)

		log.Debug("hidden")
		assert.Zero(t, buf.Len())
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("写入轮转日志文件", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "logs", "aliasbox.log")
		log, err := NewLogger(Config{Level: "info", LogFile: file, MaxSize: 1, Output: zapcore.AddSync(&buf)})
		require.NoError(t, err)

		log.Info("to file")
		require.NoError(t, log.Sync())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
		assert.Contains(t, buf.String(), "to file")
	})
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LogConfig{Level: "warn", File: "/var/log/x.log", MaxSize: 10})
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "/var/log/x.log", cfg.LogFile)
	assert.Equal(t, 10, cfg.MaxSize)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	log := zap.NewExample()
	assert.Same(t, log, OrNop(log))
}
