package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aliasbox/backend/internal/cache"
	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/storage/sqlite"
	"aliasbox/backend/internal/vault"
)

// testEnv 基于临时 SQLite 文件的完整服务组合
type testEnv struct {
	store   *sqlite.Store
	metrics *monitoring.Metrics
	configs *ConfigService
	search  *SearchService
	emails  *EmailService
	tags    *TagService
	batch   *BatchService
	export  *ExportService
}

var testKDF = vault.WithKDFParams(vault.KDFParams{Time: 1, Memory: 1024, Threads: 1})

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "aliasbox.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := cache.NewLocalCache(time.Minute, time.Minute)
	t.Cleanup(c.Close)

	env := &testEnv{store: store, metrics: monitoring.NewMetrics()}
	env.configs = NewConfigService(store, config.DomainsConfig{Allowed: []string{"example.com", "test.dev"}}, c, nil, testKDF)
	env.search = NewSearchService(store, config.SearchConfig{}, env.metrics, nil)
	env.emails = NewEmailService(store, env.configs, env.search, env.metrics, nil)
	env.tags = NewTagService(store, env.metrics, nil)
	env.batch = NewBatchService(store, env.emails, env.tags, env.configs, config.BatchConfig{}, env.metrics, nil)
	env.export = NewExportService(env.search, env.tags, env.configs, env.metrics, nil)
	return env
}

// createEmail 创建一条记录，tags 不存在时自动创建
func (env *testEnv) createEmail(t *testing.T, address string, tags ...string) *domain.Email {
	t.Helper()
	ctx := context.Background()

	input := CreateEmailInput{Address: address}
	if len(tags) > 0 {
		created, err := env.tags.EnsureTags(ctx, tags)
		require.NoError(t, err)
		for _, tag := range created {
			input.TagIDs = append(input.TagIDs, tag.ID)
		}
	}
	email, err := env.emails.Create(ctx, input)
	require.NoError(t, err)
	return email
}

func (env *testEnv) createTag(t *testing.T, name string) *domain.Tag {
	t.Helper()
	tag, err := env.tags.CreateTag(context.Background(), CreateTagInput{Name: name})
	require.NoError(t, err)
	return tag
}
