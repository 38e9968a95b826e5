package monitoring

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("实例之间互不干扰", func(t *testing.T) {
		a := NewMetrics()
		b := NewMetrics()

		a.RecordEmailCreated()
		a.RecordEmailCreated()
		b.RecordEmailCreated()

		assert.Equal(t, 2.0, testutil.ToFloat64(a.EmailsCreated))
		assert.Equal(t, 1.0, testutil.ToFloat64(b.EmailsCreated))
	})

	t.Run("批量结果按结果分类计数", func(t *testing.T) {
		m := NewMetrics()
		m.RecordBatch("create", 4, 1, 0, 10*time.Millisecond)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("create")))
		assert.Equal(t, 4.0, testutil.ToFloat64(m.BatchItems.WithLabelValues("create", "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchItems.WithLabelValues("create", "failed")))
	})

	t.Run("nil接收者为空操作", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.RecordEmailCreated()
			m.RecordEmailDeleted(true)
			m.RecordBatch("delete", 1, 0, 0, time.Second)
			m.RecordExport("csv")
			m.RecordHTTPRequest("GET", "/v1/emails", "200", time.Millisecond)
		})
	})

	t.Run("暴露指标端点", func(t *testing.T) {
		m := NewMetrics()
		m.RecordExport("json")
		m.RecordEmailDeleted(false)

		rec := httptest.NewRecorder()
		m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		require.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Body.String(), `aliasbox_exports_total{format="json"} 1`)
		assert.Contains(t, rec.Body.String(), `aliasbox_emails_deleted_total{mode="soft"} 1`)
	})
}
