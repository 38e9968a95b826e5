package httptransport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/export"
	"aliasbox/backend/internal/service"
)

// ========== Export Handlers ==========

// attachment 以附件形式返回导出内容
func attachment(c *gin.Context, name, ext, contentType string, data []byte) {
	filename := fmt.Sprintf("%s-%s%s", name, time.Now().UTC().Format("20060102-150405"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// exportAll godoc
// @Summary 导出全部记录
// @Description JSON 导出包可直接用于 /v1/batch/import
// @Tags Export
// @Produce json,text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "json（默认）、csv 或 xlsx"
// @Param includeDeleted query bool false "包含软删除的记录"
// @Success 200 {file} file
// @Failure 400 {object} Response
// @Router /v1/export/emails [get]
func (h *Handler) exportAll(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondError(c, "export", err)
		return
	}

	data, err := h.export.ExportAll(c.Request.Context(), format, queryBool(c, "includeDeleted"))
	if err != nil {
		h.respondError(c, "export", err)
		return
	}
	attachment(c, "emails", format.Extension(), format.ContentType(), data)
}

// exportTemplate 按预设模板导出，过滤条件与 /v1/search 相同
func (h *Handler) exportTemplate(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		h.respondError(c, "export", err)
		return
	}

	template := service.ExportTemplate(c.Param("name"))
	out, err := h.export.ExportWithTemplate(c.Request.Context(), template, filters)
	if err != nil {
		h.respondError(c, "export", err)
		return
	}

	switch template {
	case service.TemplateSimple:
		attachment(c, "emails-simple", export.FormatCSV.Extension(), export.FormatCSV.ContentType(), []byte(out))
	case service.TemplateDetailed:
		attachment(c, "emails-detailed", export.FormatJSON.Extension(), export.FormatJSON.ContentType(), []byte(out))
	default:
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
	}
}

// exportAdvanced godoc
// @Summary 高级导出
// @Description 按过滤条件和字段选择导出；tags 和 metadata 需要显式开启
// @Tags Export
// @Accept json
// @Param body body service.ExportOptions true "导出参数"
// @Success 200 {file} file
// @Failure 400 {object} Response
// @Router /v1/export/advanced [post]
func (h *Handler) exportAdvanced(c *gin.Context) {
	var opts service.ExportOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	data, err := h.export.ExportAdvanced(c.Request.Context(), opts)
	if err != nil {
		h.respondError(c, "export", err)
		return
	}
	format, _ := export.ParseFormat(string(opts.Format))
	attachment(c, "emails-custom", format.Extension(), format.ContentType(), data)
}

func (h *Handler) exportTags(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondError(c, "export", err)
		return
	}

	data, err := h.export.ExportTags(c.Request.Context(), format)
	if err != nil {
		h.respondError(c, "export", err)
		return
	}
	attachment(c, "tags", format.Extension(), format.ContentType(), data)
}

// exportConfig 导出配置项；未解锁时写入的明文占位值带有 PLAINTEXT 标记
func (h *Handler) exportConfig(c *gin.Context) {
	data, err := h.export.ExportConfig(c.Request.Context())
	if err != nil {
		h.respondError(c, "export", err)
		return
	}
	attachment(c, "config", export.FormatJSON.Extension(), export.FormatJSON.ContentType(), data)
}
