package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/pool"
	"aliasbox/backend/internal/service"
)

// 错误消息映射表（哨兵错误 -> 中文消息）
var errorMessages = map[error]string{
	service.ErrNoCodeFetcher: "未配置验证码获取方式",
	pool.ErrQueueFull:        "批量任务队列已满，请稍后重试",
	pool.ErrPoolStopped:      "服务正在关闭",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"
	MsgInvalidID      = "ID格式无效"
	MsgInvalidFile    = "上传文件读取失败"

	// 资源相关
	MsgEmailNotFound = "邮箱记录不存在"
	MsgTagNotFound   = "标签不存在"
	MsgJobNotFound   = "任务不存在"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// statusFor 根据领域错误类型选择 HTTP 状态码
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	case domain.IsCrypto(err), errors.Is(err, service.ErrNoCodeFetcher):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, pool.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorType 指标中的错误分类
func errorType(err error, status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "crypto"
	case http.StatusTooManyRequests:
		return "queue_full"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if domain.IsStorage(err) {
		return "storage"
	}
	return "internal"
}

// respondError 将服务层错误写成统一响应
//
// 500 错误不向调用方暴露内部细节，只记录日志。
func (h *Handler) respondError(c *gin.Context, component string, err error) {
	status := statusFor(err)
	h.metrics.RecordError(errorType(err, status), component)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("component", component),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		InternalError(c, MsgInternalError)
		return
	}
	Error(c, status, GetErrorMessage(err))
}
