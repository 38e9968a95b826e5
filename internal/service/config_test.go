package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/vault"
)

func TestConfigService_Versions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.configs.Set(ctx, domain.SectionSystem, "theme", "light", "ui theme")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := env.configs.Set(ctx, domain.SectionSystem, "theme", "dark", "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	value, err := env.configs.Get(ctx, domain.SectionSystem, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", value)

	t.Run("历史版本倒序且只有一个有效版本", func(t *testing.T) {
		history, err := env.configs.History(ctx, domain.SectionSystem, "theme")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 2, history[0].Version)
		active := 0
		for _, h := range history {
			if h.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("回滚生成新版本", func(t *testing.T) {
		entry, err := env.configs.Rollback(ctx, domain.SectionSystem, "theme", 1)
		require.NoError(t, err)
		assert.Equal(t, 3, entry.Version)

		value, err := env.configs.Get(ctx, domain.SectionSystem, "theme")
		require.NoError(t, err)
		assert.Equal(t, "light", value)

		_, err = env.configs.Rollback(ctx, domain.SectionSystem, "theme", 42)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("参数校验", func(t *testing.T) {
		_, err := env.configs.Set(ctx, "billing", "x", "y", "")
		assert.True(t, domain.IsValidation(err))
		_, err = env.configs.Set(ctx, domain.SectionSystem, "", "y", "")
		assert.True(t, domain.IsValidation(err))
		_, err = env.configs.Set(ctx, domain.SectionSystem, "vault_check", "y", "")
		assert.True(t, domain.IsValidation(err), "保留键不可写")
		_, err = env.configs.History(ctx, domain.SectionSystem, "missing")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("读取分区", func(t *testing.T) {
		_, err := env.configs.Set(ctx, domain.SectionSystem, "lang", "zh", "")
		require.NoError(t, err)
		section, err := env.configs.GetSection(ctx, domain.SectionSystem)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"theme": "light", "lang": "zh"}, section)
	})
}

func TestConfigService_Vault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("未解锁时明文占位", func(t *testing.T) {
		entry, err := env.configs.Set(ctx, domain.SectionSecurity, "imap_password", "hunter2", "")
		require.NoError(t, err)
		assert.False(t, entry.IsEncrypted)
		assert.True(t, vault.IsPlaceholder(entry.Value))

		value, err := env.configs.Get(ctx, domain.SectionSecurity, "imap_password")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", value)

		_, err = env.configs.Set(ctx, domain.SectionSecurity, "api_token", "PLAIN:literal", "")
		require.NoError(t, err)
		value, err = env.configs.Get(ctx, domain.SectionSecurity, "api_token")
		require.NoError(t, err)
		assert.Equal(t, "PLAIN:literal", value)

		items, err := env.configs.ExportEntries(ctx)
		require.NoError(t, err)
		found := false
		for _, item := range items {
			if item.Key == "imap_password" {
				found = true
				assert.Contains(t, item.Label, "PLAINTEXT")
			}
		}
		assert.True(t, found)
	})

	t.Run("首次解锁重新加密占位值", func(t *testing.T) {
		assert.False(t, env.configs.Unlocked())
		require.NoError(t, env.configs.Unlock(ctx, "correct horse"))
		assert.True(t, env.configs.Unlocked())

		history, err := env.configs.History(ctx, domain.SectionSecurity, "imap_password")
		require.NoError(t, err)
		assert.True(t, history[0].IsEncrypted)
		assert.True(t, strings.HasPrefix(history[0].Value, vault.EncryptedPrefix))
		assert.NotContains(t, history[0].Value, "hunter2")

		value, err := env.configs.Get(ctx, domain.SectionSecurity, "imap_password")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", value)

		// 重新加密只去掉一层占位前缀
		value, err = env.configs.Get(ctx, domain.SectionSecurity, "api_token")
		require.NoError(t, err)
		assert.Equal(t, "PLAIN:literal", value)
		tokens, err := env.configs.History(ctx, domain.SectionSecurity, "api_token")
		require.NoError(t, err)
		assert.True(t, tokens[0].IsEncrypted)
	})

	t.Run("非敏感分区不加密", func(t *testing.T) {
		entry, err := env.configs.Set(ctx, domain.SectionSystem, "timezone", "UTC", "")
		require.NoError(t, err)
		assert.False(t, entry.IsEncrypted)
		assert.Equal(t, "UTC", entry.Value)
	})

	t.Run("非敏感分区的值原样读取", func(t *testing.T) {
		_, err := env.configs.Set(ctx, domain.SectionSystem, "banner", "PLAIN:hello", "")
		require.NoError(t, err)
		_, err = env.configs.Set(ctx, domain.SectionSystem, "marker", "ENC:v1:AAAA", "")
		require.NoError(t, err)

		value, err := env.configs.Get(ctx, domain.SectionSystem, "banner")
		require.NoError(t, err)
		assert.Equal(t, "PLAIN:hello", value)

		locked := NewConfigService(env.store, config.DomainsConfig{}, nil, nil, testKDF)
		section, err := locked.GetSection(ctx, domain.SectionSystem)
		require.NoError(t, err, "未解锁也能读取非敏感分区")
		assert.Equal(t, "PLAIN:hello", section["banner"])
		assert.Equal(t, "ENC:v1:AAAA", section["marker"])
	})

	t.Run("密码错误", func(t *testing.T) {
		other := NewConfigService(env.store, config.DomainsConfig{}, nil, nil, testKDF)
		err := other.Unlock(ctx, "wrong password")
		assert.True(t, domain.IsCrypto(err))
		assert.False(t, other.Unlocked())

		_, err = other.Get(ctx, domain.SectionSecurity, "imap_password")
		assert.True(t, domain.IsCrypto(err), "未解锁时读取密文不回退为明文")
		_, err = other.GetSection(ctx, domain.SectionSecurity)
		assert.True(t, domain.IsCrypto(err))

		assert.True(t, domain.IsValidation(other.Unlock(ctx, "")))
	})

	t.Run("正确密码在新实例上解锁", func(t *testing.T) {
		other := NewConfigService(env.store, config.DomainsConfig{}, nil, nil, testKDF)
		require.NoError(t, other.Unlock(ctx, "correct horse"))
		value, err := other.Get(ctx, domain.SectionSecurity, "imap_password")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", value)
	})
}

func TestConfigService_Domains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("首次读取写入默认值", func(t *testing.T) {
		domains, err := env.configs.Domains(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"example.com", "test.dev"}, domains)

		history, err := env.configs.History(ctx, domain.SectionDomain, "domains")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("规范化并使缓存失效", func(t *testing.T) {
		saved, err := env.configs.SetDomains(ctx, []string{"B.org", "a.net", "b.org", " "})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.net", "b.org"}, saved)

		domains, err := env.configs.Domains(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.net", "b.org"}, domains)

		_, err = env.emails.Create(ctx, CreateEmailInput{Address: "x@example.com"})
		assert.True(t, domain.IsValidation(err), "移除的域名不可再用于创建")
		_, err = env.emails.Create(ctx, CreateEmailInput{Address: "x@a.net"})
		assert.NoError(t, err)
	})

	t.Run("非法域名", func(t *testing.T) {
		_, err := env.configs.SetDomains(ctx, []string{"not a domain"})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("回滚域名列表", func(t *testing.T) {
		_, err := env.configs.Rollback(ctx, domain.SectionDomain, "domains", 1)
		require.NoError(t, err)
		domains, err := env.configs.Domains(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"example.com", "test.dev"}, domains)
	})

	t.Run("没有默认值", func(t *testing.T) {
		empty := newTestEnv(t)
		bare := NewConfigService(empty.store, config.DomainsConfig{}, nil, nil)
		domains, err := bare.Domains(ctx)
		require.NoError(t, err)
		assert.Empty(t, domains)
	})
}
