package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探活的依赖
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health  healthcheck.Handler
	store   Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store Pinger, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		store:   store,
		timeout: 3 * time.Second,
		logger:  logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	hc.health.AddReadinessCheck("database", hc.databaseCheck)

	return hc
}

func (hc *HealthChecker) databaseCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	if err := hc.store.Health(ctx); err != nil {
		hc.logger.Warn("database health check failed", zap.Error(err))
		return err
	}
	return nil
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	results := make(map[string]string)

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()
	if err := hc.store.Health(ctx); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return results
}

// Healthy 所有检查项是否正常
func Healthy(results map[string]string) bool {
	for key, value := range results {
		if key == "timestamp" {
			continue
		}
		if value != "OK" {
			return false
		}
	}
	return true
}
