package httptransport

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/export"
	"aliasbox/backend/internal/service"
)

// ========== Batch Handlers ==========

// runBatch 执行批量操作
//
// async=true 且配置了任务执行器时提交到后台执行并返回 202 与任务信息，
// 任务使用执行器的 context，不随请求结束而取消。
func (h *Handler) runBatch(c *gin.Context, kind string, fn func(ctx context.Context) (*domain.BatchResult, error)) {
	if queryBool(c, "async") && h.jobs != nil {
		job, err := h.jobs.Submit(kind, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
		if err != nil {
			h.respondError(c, "batch", err)
			return
		}
		Accepted(c, job)
		return
	}

	result, err := fn(c.Request.Context())
	if err != nil {
		h.respondError(c, "batch", err)
		return
	}
	Success(c, result)
}

// batchCreate godoc
// @Summary 批量创建
// @Description 按命名策略生成 count 个地址；已存在的地址计为失败，不影响其余记录
// @Tags Batch
// @Accept json
// @Produce json
// @Param async query bool false "后台执行"
// @Param body body service.BatchCreateInput true "批量创建参数"
// @Success 200 {object} Response{data=domain.BatchResult}
// @Success 202 {object} Response{data=pool.Job}
// @Failure 400 {object} Response
// @Router /v1/batch/create [post]
func (h *Handler) batchCreate(c *gin.Context) {
	var input service.BatchCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	h.runBatch(c, "create", func(ctx context.Context) (*domain.BatchResult, error) {
		return h.batch.BatchCreate(ctx, input)
	})
}

type batchUpdateRequest struct {
	IDs     []int64                  `json:"ids" binding:"required"`
	Updates service.UpdateEmailInput `json:"updates"`
}

func (h *Handler) batchUpdate(c *gin.Context) {
	var req batchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	h.runBatch(c, "update", func(ctx context.Context) (*domain.BatchResult, error) {
		return h.batch.BatchUpdate(ctx, req.IDs, req.Updates)
	})
}

type batchDeleteRequest struct {
	IDs  []int64 `json:"ids" binding:"required"`
	Hard bool    `json:"hard"`
}

func (h *Handler) batchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	h.runBatch(c, "delete", func(ctx context.Context) (*domain.BatchResult, error) {
		return h.batch.BatchDelete(ctx, req.IDs, req.Hard)
	})
}

type batchTagsRequest struct {
	IDs  []int64        `json:"ids" binding:"required"`
	Tags []string       `json:"tags"`
	Mode domain.TagMode `json:"mode"`
}

// batchTags 批量为记录添加、移除或替换标签
func (h *Handler) batchTags(c *gin.Context) {
	var req batchTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = domain.TagModeAdd
	}

	h.runBatch(c, "tags", func(ctx context.Context) (*domain.BatchResult, error) {
		return h.batch.BatchApplyTags(ctx, req.IDs, req.Tags, req.Mode)
	})
}

// batchImport godoc
// @Summary 导入记录
// @Description 接受 multipart 文件（字段 file）或原始请求体，格式由 format 参数、文件扩展名或 Content-Type 决定
// @Tags Batch
// @Accept json,text/csv,multipart/form-data
// @Produce json
// @Param format query string false "json、csv 或 xlsx"
// @Param strategy query string false "冲突策略：skip（默认）、update、error"
// @Param async query bool false "后台执行"
// @Success 200 {object} Response{data=domain.BatchResult}
// @Failure 400 {object} Response
// @Router /v1/batch/import [post]
func (h *Handler) batchImport(c *gin.Context) {
	strategy := domain.ConflictStrategy(c.DefaultQuery("strategy", string(domain.ConflictSkip)))
	if !strategy.Valid() {
		h.respondError(c, "batch", domain.NewValidationError("strategy", "unknown conflict strategy %q", strategy))
		return
	}

	data, hint, err := readImportPayload(c)
	if err != nil {
		BadRequest(c, MsgInvalidFile)
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", hint))
	if err != nil {
		h.respondError(c, "batch", err)
		return
	}
	rows, err := export.DecodeRows(format, data)
	if err != nil {
		h.respondError(c, "batch", err)
		return
	}

	h.runBatch(c, "import", func(ctx context.Context) (*domain.BatchResult, error) {
		return h.batch.BatchImport(ctx, rows, strategy)
	})
}

// readImportPayload 读取导入内容，并返回根据文件名或 Content-Type 推断的格式
func readImportPayload(c *gin.Context) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "multipart/form-data" {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return data, strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), "."), nil
	}

	data, err := c.GetRawData()
	if err != nil {
		return nil, "", err
	}

	switch {
	case strings.Contains(mediaType, "csv"):
		return data, string(export.FormatCSV), nil
	case strings.Contains(mediaType, "spreadsheetml"):
		return data, string(export.FormatXLSX), nil
	}
	return data, string(export.FormatJSON), nil
}

// ========== Job Handlers ==========

func (h *Handler) listJobs(c *gin.Context) {
	if h.jobs == nil {
		Success(c, []any{})
		return
	}
	Success(c, h.jobs.List())
}

func (h *Handler) getJob(c *gin.Context) {
	if h.jobs == nil {
		NotFound(c, MsgJobNotFound)
		return
	}
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		NotFound(c, MsgJobNotFound)
		return
	}
	Success(c, job)
}
