package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aliasbox/backend/internal/cache"
	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/health"
	"aliasbox/backend/internal/logger"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/pool"
	"aliasbox/backend/internal/service"
	"aliasbox/backend/internal/storage/sqlite"
	httptransport "aliasbox/backend/internal/transport/http"
)

// main 启动本地 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting aliasbox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("database", cfg.Database.Path),
	)

	// 初始化存储层（打开时自动迁移）
	store, err := sqlite.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	domainCache := cache.NewLocalCache(cfg.Domains.CacheTTL, time.Minute)
	defer domainCache.Close()

	// 初始化服务层
	configService := service.NewConfigService(store, cfg.Domains, domainCache, log)
	searchService := service.NewSearchService(store, cfg.Search, metrics, log)
	emailService := service.NewEmailService(store, configService, searchService, metrics, log)
	tagService := service.NewTagService(store, metrics, log)
	batchService := service.NewBatchService(store, emailService, tagService, configService, cfg.Batch, metrics, log)
	exportService := service.NewExportService(searchService, tagService, configService, metrics, log)

	// 验证码获取方式由嵌入方提供，独立运行时不可用
	codeService := service.NewCodeService(nil, cfg.Verification, metrics, log)
	generatorService := service.NewGeneratorService(emailService, tagService, codeService, configService, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 主密码只从环境变量读取；未设置时敏感配置以明文占位保存
	if cfg.Vault.MasterPassword != "" {
		if err := configService.Unlock(ctx, cfg.Vault.MasterPassword); err != nil {
			log.Fatal("failed to unlock config vault", zap.Error(err))
		}
	} else {
		log.Warn("master password not set, sensitive config will be stored as plaintext placeholders")
	}

	// 批量任务串行执行，避免与前台写入争用数据库写锁
	jobs := pool.NewJobRunner(1, cfg.Batch.QueueSize, 0, log.Named("jobs"))
	jobs.OnPanic(metrics.RecordPanic)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		EmailService:     emailService,
		TagService:       tagService,
		SearchService:    searchService,
		BatchService:     batchService,
		ExportService:    exportService,
		ConfigService:    configService,
		GeneratorService: generatorService,
		Jobs:             jobs,
		HealthChecker:    healthChecker,
		Metrics:          metrics,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 批量任务执行器 goroutine
	group.Go(func() error {
		jobs.Start(groupCtx)
		<-groupCtx.Done()
		jobs.Stop()
		log.Info("job runner stopped")
		return nil
	})

	// 定时刷新活跃记录数指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := searchService.Overview(groupCtx); err != nil && groupCtx.Err() == nil {
					log.Warn("failed to refresh overview metrics", zap.Error(err))
				}
			}
		}
	})

	// 告警巡检 goroutine
	alerts := monitoring.NewAlertManager(log.Named("alerts"))
	alerts.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alerts.AddRule(monitoring.DatabaseHealthRule(store, 3*time.Second))
	alerts.AddRule(monitoring.HighMemoryUsageRule(cfg.Monitoring.MemoryThresholdMB))
	alerts.AddRule(monitoring.ServerErrorBurstRule(metrics, cfg.Monitoring.ErrorBurst))
	group.Go(func() error {
		alerts.StartMonitoring(groupCtx, cfg.Monitoring.AlertInterval)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
