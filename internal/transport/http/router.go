package httptransport

import (
	"net/http"
	"strconv"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/health"
	"aliasbox/backend/internal/middleware"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/pool"
	"aliasbox/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	emails    *service.EmailService
	tags      *service.TagService
	search    *service.SearchService
	batch     *service.BatchService
	export    *service.ExportService
	configs   *service.ConfigService
	generator *service.GeneratorService
	jobs      *pool.JobRunner
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	EmailService     *service.EmailService
	TagService       *service.TagService
	SearchService    *service.SearchService
	BatchService     *service.BatchService
	ExportService    *service.ExportService
	ConfigService    *service.ConfigService
	GeneratorService *service.GeneratorService // 可选
	Jobs             *pool.JobRunner           // 可选，为空时批量接口只支持同步执行
	HealthChecker    *health.HealthChecker     // 可选
	Metrics          *monitoring.Metrics
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(monitor.HTTPMetrics())

	// 导入接口允许更大的请求体
	router.Use(middleware.DynamicBodySizeLimit(map[string]int64{
		"/v1/batch/import": middleware.ImportBodyLimit,
	}, middleware.DefaultBodyLimit))

	// CORS 配置
	var origins []string
	if deps.Config != nil {
		origins = deps.Config.CORS.AllowedOrigins
	}
	if len(origins) > 0 {
		corsConfig := gincors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDKey},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDKey},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}

		// 如果允许所有来源，则需清空凭证支持。
		for _, origin := range corsConfig.AllowOrigins {
			if origin == "*" {
				corsConfig.AllowCredentials = false
				break
			}
		}
		router.Use(gincors.New(corsConfig))
	}

	handler := &Handler{
		emails:    deps.EmailService,
		tags:      deps.TagService,
		search:    deps.SearchService,
		batch:     deps.BatchService,
		export:    deps.ExportService,
		configs:   deps.ConfigService,
		generator: deps.GeneratorService,
		jobs:      deps.Jobs,
		metrics:   deps.Metrics,
		logger:    log.Named("http"),
	}

	// 健康检查
	router.GET("/health", handler.health(deps.HealthChecker))
	if deps.HealthChecker != nil {
		probes := http.StripPrefix("/health", deps.HealthChecker.Handler())
		router.GET("/health/live", gin.WrapH(probes))
		router.GET("/health/ready", gin.WrapH(probes))
	}

	// Prometheus 指标端点
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	jsonOnly := middleware.ValidateContentType("application/json")

	v1 := router.Group("/v1")
	{
		// ========== Email Routes ==========
		emailRoutes := v1.Group("/emails")
		{
			emailRoutes.POST("", jsonOnly, handler.createEmail)
			emailRoutes.GET("", handler.listEmails)
			emailRoutes.GET("/:id", handler.getEmail)
			emailRoutes.PATCH("/:id", jsonOnly, handler.updateEmail)
			emailRoutes.DELETE("/:id", handler.deleteEmail) // ?hard=true 物理删除
			emailRoutes.POST("/:id/restore", handler.restoreEmail)
			emailRoutes.POST("/:id/use", handler.markEmailUsed)

			// 记录的标签
			emailRoutes.GET("/:id/tags", handler.getEmailTags)
			emailRoutes.POST("/:id/tags", jsonOnly, handler.addEmailTags)
			emailRoutes.PUT("/:id/tags", jsonOnly, handler.replaceEmailTags)
			emailRoutes.DELETE("/:id/tags/:tagId", handler.removeEmailTag)
		}

		// ========== Tag Routes ==========
		tagRoutes := v1.Group("/tags")
		{
			tagRoutes.POST("", jsonOnly, handler.createTag)
			tagRoutes.GET("", handler.listTags)
			tagRoutes.POST("/merge", jsonOnly, handler.mergeTags)
			tagRoutes.GET("/:id", handler.getTag)
			tagRoutes.PATCH("/:id", jsonOnly, handler.updateTag)
			tagRoutes.DELETE("/:id", handler.deleteTag) // ?hard=true&force=true
			tagRoutes.GET("/:id/usage", handler.tagUsage)
		}

		// ========== Search & Statistics Routes ==========
		v1.GET("/search", handler.searchEmails)
		v1.POST("/search", jsonOnly, handler.advancedSearch)
		v1.GET("/search/tags", handler.searchByTags)
		v1.GET("/stats/period", handler.statisticsByPeriod)
		v1.GET("/stats/overview", handler.overview)
		v1.GET("/logs", handler.recentOperations)

		// ========== Batch Routes ==========
		batchRoutes := v1.Group("/batch")
		{
			batchRoutes.POST("/create", jsonOnly, handler.batchCreate)
			batchRoutes.POST("/update", jsonOnly, handler.batchUpdate)
			batchRoutes.POST("/delete", jsonOnly, handler.batchDelete)
			batchRoutes.POST("/tags", jsonOnly, handler.batchTags)
			batchRoutes.POST("/import", handler.batchImport)
			batchRoutes.GET("/jobs", handler.listJobs)
			batchRoutes.GET("/jobs/:id", handler.getJob)
		}

		// ========== Export Routes ==========
		exportRoutes := v1.Group("/export")
		{
			exportRoutes.GET("/emails", handler.exportAll)
			exportRoutes.GET("/template/:name", handler.exportTemplate)
			exportRoutes.POST("/advanced", jsonOnly, handler.exportAdvanced)
			exportRoutes.GET("/tags", handler.exportTags)
			exportRoutes.GET("/config", handler.exportConfig)
		}

		// ========== Config Routes ==========
		v1.GET("/vault", handler.vaultStatus)
		v1.POST("/vault/unlock", jsonOnly, handler.unlockVault)
		v1.GET("/domains", handler.listDomains)
		v1.PUT("/domains", jsonOnly, handler.setDomains)

		configRoutes := v1.Group("/config")
		{
			configRoutes.GET("/:section", handler.getConfigSection)
			configRoutes.GET("/:section/:key", handler.getConfig)
			configRoutes.PUT("/:section/:key", jsonOnly, handler.setConfig)
			configRoutes.GET("/:section/:key/history", handler.configHistory)
			configRoutes.POST("/:section/:key/rollback", jsonOnly, handler.rollbackConfig)
		}

		// ========== Generator Routes ==========
		if deps.GeneratorService != nil {
			v1.POST("/generate", jsonOnly, handler.generate)
		}
	}

	return router
}

// health 汇总健康检查结果
func (h *Handler) health(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		results := checker.CheckHealth(c.Request.Context())
		if !health.Healthy(results) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}

// parseID 读取路径中的整数 ID
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, MsgInvalidID)
		return 0, false
	}
	return id, true
}

// queryInt 读取整数查询参数，缺省或非法时返回 fallback
func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}

// queryBool 读取布尔查询参数
func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
