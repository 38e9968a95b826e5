package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ALIASBOX_SERVER_HOST",
	"ALIASBOX_SERVER_PORT",
	"ALIASBOX_DATABASE_PATH",
	"ALIASBOX_DOMAINS_ALLOWED",
	"ALIASBOX_LOG_LEVEL",
	"ALIASBOX_LOG_DEVELOPMENT",
	"ALIASBOX_SEARCH_DEFAULT_PAGE_SIZE",
	"ALIASBOX_SEARCH_MAX_PAGE_SIZE",
	"ALIASBOX_BATCH_MAX_ITEMS",
	"ALIASBOX_VAULT_MASTER_PASSWORD",
	"ALIASBOX_VERIFICATION_TIMEOUT",
	"ALIASBOX_CORS_ALLOWED_ORIGINS",
}

// clearEnv 清空相关环境变量，测试结束后自动恢复
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8787, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1:8787", cfg.Server.Address())
		assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, "aliasbox.db", cfg.Database.Path)
		assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
		assert.Empty(t, cfg.Domains.Allowed)
		assert.Equal(t, 20, cfg.Search.DefaultPageSize)
		assert.Equal(t, 100, cfg.Search.MaxPageSize)
		assert.Equal(t, 1000, cfg.Batch.MaxItems)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Empty(t, cfg.Vault.MasterPassword)
		assert.Equal(t, 2*time.Minute, cfg.Verification.Timeout)
		assert.Equal(t, 1.0, cfg.Verification.RatePerSecond)
		assert.Equal(t, 30*time.Second, cfg.Monitoring.AlertInterval)
		assert.Equal(t, 512.0, cfg.Monitoring.MemoryThresholdMB)
		assert.Equal(t, 50, cfg.Monitoring.ErrorBurst)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALIASBOX_SERVER_PORT", "9090")
		t.Setenv("ALIASBOX_DATABASE_PATH", "/tmp/custom.db")
		t.Setenv("ALIASBOX_DOMAINS_ALLOWED", "Example.COM, mail.test.dev ,")
		t.Setenv("ALIASBOX_LOG_LEVEL", "debug")
		t.Setenv("ALIASBOX_LOG_DEVELOPMENT", "true")
		t.Setenv("ALIASBOX_VAULT_MASTER_PASSWORD", "s3cret")
		t.Setenv("ALIASBOX_VERIFICATION_TIMEOUT", "30s")
		t.Setenv("ALIASBOX_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
		assert.Equal(t, []string{"example.com", "mail.test.dev"}, cfg.Domains.Allowed)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
		assert.Equal(t, "s3cret", cfg.Vault.MasterPassword)
		assert.Equal(t, 30*time.Second, cfg.Verification.Timeout)
		assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("非法端口返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALIASBOX_SERVER_PORT", "70000")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("默认分页大于最大分页返回错误", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALIASBOX_SEARCH_DEFAULT_PAGE_SIZE", "200")
		t.Setenv("ALIASBOX_SEARCH_MAX_PAGE_SIZE", "100")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法时长回退默认值", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALIASBOX_VERIFICATION_TIMEOUT", "soon")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.Verification.Timeout)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a ,, b "))
	assert.Empty(t, parseList(""))
	assert.Equal(t, []string{"x.com", "y.org"}, parseDomains("X.com,Y.ORG"))
}
