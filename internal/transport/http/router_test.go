package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliasbox/backend/internal/cache"
	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/health"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/pool"
	"aliasbox/backend/internal/service"
	"aliasbox/backend/internal/storage/sqlite"
	"aliasbox/backend/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	metrics *monitoring.Metrics
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "aliasbox.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := cache.NewLocalCache(time.Minute, time.Minute)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithCancel(context.Background())
	jobs := pool.NewJobRunner(1, 4, 0, nil)
	jobs.Start(ctx)
	t.Cleanup(func() {
		cancel()
		jobs.Stop()
	})

	metrics := monitoring.NewMetrics()
	configs := service.NewConfigService(store, config.DomainsConfig{Allowed: []string{"example.com", "test.dev"}}, c, nil,
		vault.WithKDFParams(vault.KDFParams{Time: 1, Memory: 1024, Threads: 1}))
	search := service.NewSearchService(store, config.SearchConfig{}, metrics, nil)
	emails := service.NewEmailService(store, configs, search, metrics, nil)
	tags := service.NewTagService(store, metrics, nil)

	router := NewRouter(RouterDependencies{
		Config:           &config.Config{},
		EmailService:     emails,
		TagService:       tags,
		SearchService:    search,
		BatchService:     service.NewBatchService(store, emails, tags, configs, config.BatchConfig{}, metrics, nil),
		ExportService:    service.NewExportService(search, tags, configs, metrics, nil),
		ConfigService:    configs,
		GeneratorService: service.NewGeneratorService(emails, tags, nil, configs, nil),
		Jobs:             jobs,
		HealthChecker:    health.NewHealthChecker(store, nil),
		Metrics:          metrics,
	})
	return &testServer{router: router, metrics: metrics}
}

// do 发送 JSON 请求，body 为 nil 时不带请求体
func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func TestEmailRoutes(t *testing.T) {
	s := newTestServer(t)

	var created domain.Email
	rec := s.do(http.MethodPost, "/v1/emails", gin.H{"email": "Shop@Example.com", "notes": "orders", "tags": []string{"dev"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &created)
	assert.Equal(t, "shop@example.com", created.Address)
	assert.Equal(t, []string{"dev"}, created.Tags)

	t.Run("创建失败映射状态码", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/emails", gin.H{"email": "shop@example.com"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = s.do(http.MethodPost, "/v1/emails", gin.H{"email": "x@unknown.org"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.do(http.MethodPost, "/v1/emails", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("读取", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/emails/1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(http.MethodGet, "/v1/emails/9999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, CodeNotFound, env.Code)

		rec = s.do(http.MethodGet, "/v1/emails/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var found []domain.Email
		rec = s.do(http.MethodGet, "/v1/emails?email=SHOP@example.com", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &found)
		assert.Len(t, found, 1)
	})

	t.Run("更新", func(t *testing.T) {
		var updated domain.Email
		rec := s.do(http.MethodPatch, "/v1/emails/1", gin.H{"status": "archived"})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &updated)
		assert.Equal(t, domain.EmailStatusArchived, updated.Status)

		rec = s.do(http.MethodPatch, "/v1/emails/1", gin.H{"email": "other@example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "地址不可修改")
	})

	t.Run("标签", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/emails/1/tags", gin.H{"tags": []string{"prod"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var tags []domain.Tag
		rec = s.do(http.MethodGet, "/v1/emails/1/tags", nil)
		decode(t, rec, &tags)
		assert.Len(t, tags, 2)

		rec = s.do(http.MethodPut, "/v1/emails/1/tags", gin.H{"tags": []string{"prod"}})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &tags)
		require.Len(t, tags, 1)
		assert.Equal(t, "prod", tags[0].Name)

		rec = s.do(http.MethodDelete, "/v1/emails/1/tags/"+jsonID(tags[0].ID), nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/v1/emails/1/tags", gin.H{"tagIds": []int64{1}, "mode": "sideways"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("软删除与恢复", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/v1/emails/1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var found []domain.Email
		rec = s.do(http.MethodGet, "/v1/emails?keyword=shop", nil)
		decode(t, rec, &found)
		assert.Empty(t, found)

		var restored domain.Email
		rec = s.do(http.MethodPost, "/v1/emails/1/restore", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &restored)
		assert.True(t, restored.IsActive)

		rec = s.do(http.MethodPost, "/v1/emails/1/use", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &restored)
		assert.NotNil(t, restored.LastUsedAt)
	})

	t.Run("物理删除", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/v1/emails/1?hard=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(http.MethodGet, "/v1/emails/1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestTagRoutes(t *testing.T) {
	s := newTestServer(t)

	var tag domain.Tag
	rec := s.do(http.MethodPost, "/v1/tags", gin.H{"name": "work", "color": "#112233"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &tag)

	rec = s.do(http.MethodPost, "/v1/tags", gin.H{"name": "work"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/v1/tags", gin.H{"name": "bad", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/v1/tags/"+jsonID(tag.ID), gin.H{"description": "office"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &tag)
	assert.Equal(t, "office", tag.Description)

	rec = s.do(http.MethodPost, "/v1/tags/merge", gin.H{"sourceId": tag.ID, "targetId": tag.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, "不能合并到自身")

	rec = s.do(http.MethodGet, "/v1/tags/"+jsonID(tag.ID)+"/usage", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/v1/tags/"+jsonID(tag.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tags []domain.Tag
	rec = s.do(http.MethodGet, "/v1/tags", nil)
	decode(t, rec, &tags)
	assert.Empty(t, tags, "停用的标签默认不列出")

	rec = s.do(http.MethodGet, "/v1/tags?includeInactive=true", nil)
	decode(t, rec, &tags)
	assert.Len(t, tags, 1)

	rec = s.do(http.MethodGet, "/v1/tags/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, address := range []string{"a@example.com", "b@example.com", "c@test.dev"} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/emails", gin.H{"email": address}).Code)
	}

	t.Run("查询参数", func(t *testing.T) {
		var result domain.SearchResult
		rec := s.do(http.MethodGet, "/v1/search?domain=example.com&pageSize=1&sortBy=email&sortOrder=asc", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &result)
		assert.Equal(t, int64(2), result.Pagination.TotalItems)
		assert.Equal(t, 2, result.Pagination.TotalPages)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "a@example.com", result.Items[0].Address)
	})

	t.Run("JSON 请求体", func(t *testing.T) {
		var result domain.SearchResult
		rec := s.do(http.MethodPost, "/v1/search", gin.H{"filters": gin.H{"keyword": "test.dev"}, "page": 1})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &result)
		assert.Equal(t, int64(1), result.Pagination.TotalItems)
	})

	t.Run("非法参数", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/search?sortBy=password", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/search?dateFrom=yesterday", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/search?hasNotes=maybe", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/stats/period?period=quarter", nil).Code)
	})

	t.Run("统计", func(t *testing.T) {
		var buckets []domain.PeriodBucket
		rec := s.do(http.MethodGet, "/v1/stats/period?period=year", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &buckets)
		require.Len(t, buckets, 1)
		assert.Equal(t, 3, buckets[0].Total)

		var overview domain.Overview
		rec = s.do(http.MethodGet, "/v1/stats/overview", nil)
		decode(t, rec, &overview)
		assert.Equal(t, int64(3), overview.TotalEmails)

		var logs []domain.OperationLog
		rec = s.do(http.MethodGet, "/v1/logs?limit=2", nil)
		decode(t, rec, &logs)
		assert.Len(t, logs, 2)
	})
}

func TestBatchRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("同步批量创建", func(t *testing.T) {
		var result domain.BatchResult
		rec := s.do(http.MethodPost, "/v1/batch/create", gin.H{"strategy": "sequential", "prefix": "u", "count": 3, "tags": []string{"bulk"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &result)
		assert.Equal(t, 3, result.Success)
		assert.Equal(t, 0, result.Failed)
	})

	t.Run("导入原始 CSV", func(t *testing.T) {
		var result domain.BatchResult
		req := httptest.NewRequest(http.MethodPost, "/v1/batch/import", strings.NewReader("email,status\nimp@example.com,archived\nu001@example.com,active\n"))
		req.Header.Set("Content-Type", "text/csv")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &result)
		assert.Equal(t, 1, result.Success)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("上传文件导入", func(t *testing.T) {
		body := &bytes.Buffer{}
		w := multipart.NewWriter(body)
		part, err := w.CreateFormFile("file", "rows.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte("email,notes\nimp@example.com,updated\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/batch/import?strategy=update", body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result domain.BatchResult
		decode(t, rec, &result)
		assert.Equal(t, 1, result.Updated)
	})

	t.Run("导入参数校验", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/batch/import?strategy=merge", strings.NewReader("[]"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		req = httptest.NewRequest(http.MethodPost, "/v1/batch/import?format=pdf", strings.NewReader("[]"))
		rec = httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("异步任务", func(t *testing.T) {
		var job pool.Job
		rec := s.do(http.MethodPost, "/v1/batch/tags?async=true", gin.H{"ids": []int64{1, 2, 9999}, "tags": []string{"async"}})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		decode(t, rec, &job)
		require.NotEmpty(t, job.ID)

		require.Eventually(t, func() bool {
			rec := s.do(http.MethodGet, "/v1/batch/jobs/"+job.ID, nil)
			var env struct {
				Data pool.Job `json:"data"`
			}
			if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &env) != nil {
				return false
			}
			return env.Data.Status == pool.JobSucceeded
		}, 5*time.Second, 20*time.Millisecond)

		var final struct {
			Result domain.BatchResult `json:"result"`
		}
		decode(t, s.do(http.MethodGet, "/v1/batch/jobs/"+job.ID, nil), &final)
		assert.Equal(t, 2, final.Result.Success)
		assert.Equal(t, 1, final.Result.Failed)

		var jobs []pool.Job
		decode(t, s.do(http.MethodGet, "/v1/batch/jobs", nil), &jobs)
		assert.Len(t, jobs, 1)

		assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/batch/jobs/missing", nil).Code)
	})

	t.Run("批量删除", func(t *testing.T) {
		var result domain.BatchResult
		rec := s.do(http.MethodPost, "/v1/batch/delete", gin.H{"ids": []int64{1, 9999}})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &result)
		assert.Equal(t, 1, result.Success)
		assert.Equal(t, []string{"id 9999: email not found: 9999"}, result.Errors)
	})
}

func TestExportRoutes(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/emails", gin.H{"email": "a@example.com", "tags": []string{"dev"}}).Code)

	t.Run("CSV 附件", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/export/emails?format=csv", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
		assert.Contains(t, rec.Body.String(), "a@example.com")
	})

	t.Run("未知格式", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/export/emails?format=pdf", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/export/template/fancy", nil).Code)
	})

	t.Run("模板", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/export/template/report?tags=dev", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Total: 1")
	})

	t.Run("高级导出", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/export/advanced", gin.H{"format": "csv", "fields": []string{"email", "status"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "email,status\na@example.com,active\n", rec.Body.String())
	})

	t.Run("标签与配置", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/export/tags", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"dev"`)

		rec = s.do(http.MethodGet, "/v1/export/config", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "entries")
	})
}

func TestConfigRoutes(t *testing.T) {
	s := newTestServer(t)

	var domains []string
	decode(t, s.do(http.MethodGet, "/v1/domains", nil), &domains)
	assert.Equal(t, []string{"example.com", "test.dev"}, domains)

	rec := s.do(http.MethodPut, "/v1/domains", gin.H{"domains": []string{"New.org"}})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &domains)
	assert.Equal(t, []string{"new.org"}, domains)

	t.Run("版本化配置", func(t *testing.T) {
		var entry domain.ConfigEntry
		rec := s.do(http.MethodPut, "/v1/config/system/theme", gin.H{"value": "light"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = s.do(http.MethodPut, "/v1/config/system/theme", gin.H{"value": "dark"})
		decode(t, rec, &entry)
		assert.Equal(t, 2, entry.Version)

		var value struct {
			Value string `json:"value"`
		}
		decode(t, s.do(http.MethodGet, "/v1/config/system/theme", nil), &value)
		assert.Equal(t, "dark", value.Value)

		rec = s.do(http.MethodPost, "/v1/config/system/theme/rollback", gin.H{"version": 1})
		require.Equal(t, http.StatusOK, rec.Code)

		var history []domain.ConfigEntry
		decode(t, s.do(http.MethodGet, "/v1/config/system/theme/history", nil), &history)
		assert.Len(t, history, 3)

		var section map[string]string
		decode(t, s.do(http.MethodGet, "/v1/config/system", nil), &section)
		assert.Equal(t, "light", section["theme"])

		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/v1/config/billing/x", gin.H{"value": "y"}).Code)
		assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/config/system/missing", nil).Code)
	})

	t.Run("解锁", func(t *testing.T) {
		var status struct {
			Unlocked bool `json:"unlocked"`
		}
		decode(t, s.do(http.MethodGet, "/v1/vault", nil), &status)
		assert.False(t, status.Unlocked)

		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/vault/unlock", gin.H{}).Code)
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/vault/unlock", gin.H{"password": "correct horse"}).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, "/v1/vault/unlock", gin.H{"password": "wrong"}).Code)

		decode(t, s.do(http.MethodGet, "/v1/vault", nil), &status)
		assert.True(t, status.Unlocked)
	})
}

func TestGenerateRoute(t *testing.T) {
	s := newTestServer(t)

	var result service.GenerateResult
	rec := s.do(http.MethodPost, "/v1/generate", gin.H{"strategy": "sequential", "prefix": "gen", "domain": "test.dev"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &result)
	assert.Equal(t, "gen001@test.dev", result.Email.Address)

	rec = s.do(http.MethodPost, "/v1/generate", gin.H{"strategy": "sequential", "prefix": "gen", "domain": "test.dev"})
	assert.Equal(t, http.StatusConflict, rec.Code, "序号从 1 开始，地址已存在")

	rec = s.do(http.MethodPost, "/v1/generate", gin.H{"strategy": "custom", "customNames": []string{"code"}, "waitForCode": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result = service.GenerateResult{}
	decode(t, rec, &result)
	assert.Equal(t, "code@example.com", result.Email.Address)
	require.NotNil(t, result.Code)
	assert.False(t, result.Code.Success)
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("健康检查", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"OK"`)

		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/ready", nil).Code)
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/live", nil).Code)
	})

	t.Run("错误计入指标", func(t *testing.T) {
		s.do(http.MethodGet, "/v1/emails/9999", nil)
		assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.ErrorsTotal.WithLabelValues("not_found", "email")))

		rec := s.do(http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})

	t.Run("Content-Type 校验", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader("email=a@example.com"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}
