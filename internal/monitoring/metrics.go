package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrorTypeHTTP 5xx 响应的错误类型标签
const ErrorTypeHTTP = "http_error"

// Metrics 监控指标
//
// 每个实例使用独立的注册表，所有方法在接收者为 nil 时为空操作。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 记录指标
	EmailsCreated prometheus.Counter
	EmailsDeleted *prometheus.CounterVec // mode: soft/hard
	EmailsActive  prometheus.Gauge

	// 标签指标
	TagOperations *prometheus.CounterVec // operation

	// 批量指标
	BatchRuns     *prometheus.CounterVec // operation
	BatchItems    *prometheus.CounterVec // operation, result
	BatchDuration *prometheus.HistogramVec

	// 导出与验证码
	ExportsTotal *prometheus.CounterVec // format
	CodeFetches  *prometheus.CounterVec // result

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 5xx 响应与 panic 的累计次数，供告警巡检读取
	serverErrors atomic.Uint64
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aliasbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "aliasbox_emails_created_total",
			Help: "Total number of email records created",
		}),
		EmailsDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_emails_deleted_total",
				Help: "Total number of email records deleted",
			},
			[]string{"mode"},
		),
		EmailsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aliasbox_emails_active",
			Help: "Number of active email records",
		}),

		TagOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_tag_operations_total",
				Help: "Total number of tag mutations",
			},
			[]string{"operation"},
		),

		BatchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_batch_runs_total",
				Help: "Total number of batch operations",
			},
			[]string{"operation"},
		),
		BatchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_batch_items_total",
				Help: "Batch items by result",
			},
			[]string{"operation", "result"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aliasbox_batch_duration_seconds",
				Help:    "Batch operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"operation"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_exports_total",
				Help: "Total number of exports",
			},
			[]string{"format"},
		),
		CodeFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_code_fetches_total",
				Help: "Verification code fetches by result",
			},
			[]string{"result"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aliasbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"error_type", "component"},
		),
		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aliasbox_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEmailCreated 记录邮箱创建
func (m *Metrics) RecordEmailCreated() {
	if m == nil {
		return
	}
	m.EmailsCreated.Inc()
}

// RecordEmailDeleted 记录邮箱删除
func (m *Metrics) RecordEmailDeleted(hard bool) {
	if m == nil {
		return
	}
	mode := "soft"
	if hard {
		mode = "hard"
	}
	m.EmailsDeleted.WithLabelValues(mode).Inc()
}

// UpdateEmailsActive 更新有效记录数
func (m *Metrics) UpdateEmailsActive(count int64) {
	if m == nil {
		return
	}
	m.EmailsActive.Set(float64(count))
}

// RecordTagOperation 记录标签变更
func (m *Metrics) RecordTagOperation(operation string) {
	if m == nil {
		return
	}
	m.TagOperations.WithLabelValues(operation).Inc()
}

// RecordBatch 记录一次批量操作及其逐项结果
func (m *Metrics) RecordBatch(operation string, success, failed, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(operation).Inc()
	m.BatchItems.WithLabelValues(operation, "success").Add(float64(success))
	m.BatchItems.WithLabelValues(operation, "failed").Add(float64(failed))
	m.BatchItems.WithLabelValues(operation, "skipped").Add(float64(skipped))
	m.BatchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordExport 记录导出
func (m *Metrics) RecordExport(format string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format).Inc()
}

// RecordCodeFetch 记录验证码获取结果
func (m *Metrics) RecordCodeFetch(result string) {
	if m == nil {
		return
	}
	m.CodeFetches.WithLabelValues(result).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
	if errorType == ErrorTypeHTTP {
		m.serverErrors.Add(1)
	}
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
	m.serverErrors.Add(1)
}

// ServerErrors 返回进程启动以来的服务端错误次数
func (m *Metrics) ServerErrors() uint64 {
	if m == nil {
		return 0
	}
	return m.serverErrors.Load()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
