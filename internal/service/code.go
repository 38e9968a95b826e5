package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/monitoring"
)

// ErrNoCodeFetcher 未配置验证码获取方式
var ErrNoCodeFetcher = errors.New("no verification code fetcher configured")

// CodeResult 验证码获取结果
type CodeResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CodeFetcher 验证码获取能力（IMAP、POP3、网页轮询等由外部实现）
type CodeFetcher interface {
	FetchCode(ctx context.Context, address string, timeout time.Duration) CodeResult
}

// CodeService 验证码服务
//
// 同一地址同时只有一个获取请求在执行，其余调用共享结果；
// 所有获取请求经过限流。
type CodeService struct {
	fetcher CodeFetcher
	group   singleflight.Group
	limiter *rate.Limiter
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewCodeService 创建验证码服务
func NewCodeService(fetcher CodeFetcher, cfg config.VerificationConfig, metrics *monitoring.Metrics, logger *zap.Logger) *CodeService {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CodeService{
		fetcher: fetcher,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		metrics: metrics,
		logger:  orNop(logger).Named("code"),
	}
}

// Available 是否配置了获取方式
func (s *CodeService) Available() bool {
	return s != nil && s.fetcher != nil
}

// Fetch 获取地址收到的验证码
//
// 参数:
//   - address: 邮箱地址
//
// 返回值:
//   - CodeResult: 获取结果，未取到验证码时 Success 为 false
//   - error: 未配置获取方式或 ctx 取消时返回错误
func (s *CodeService) Fetch(ctx context.Context, address string) (CodeResult, error) {
	if !s.Available() {
		return CodeResult{}, ErrNoCodeFetcher
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.metrics.RecordCodeFetch("throttled")
		return CodeResult{}, err
	}

	v, _, shared := s.group.Do(address, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.fetcher.FetchCode(fetchCtx, address, s.timeout), nil
	})
	result := v.(CodeResult)

	outcome := "failed"
	if result.Success {
		outcome = "success"
	}
	s.metrics.RecordCodeFetch(outcome)
	s.logger.Debug("verification code fetched",
		zap.String("email", address),
		zap.Bool("success", result.Success),
		zap.Bool("shared", shared),
	)
	return result, nil
}
