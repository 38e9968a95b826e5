package httptransport

import (
	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/service"
)

// ========== Tag Handlers ==========

// createTag godoc
// @Summary 创建标签
// @Description 名称区分大小写且唯一，颜色为 #RRGGBB
// @Tags Tags
// @Accept json
// @Produce json
// @Param tag body service.CreateTagInput true "标签信息"
// @Success 201 {object} Response{data=domain.Tag}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /v1/tags [post]
func (h *Handler) createTag(c *gin.Context) {
	var input service.CreateTagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数")
		return
	}

	tag, err := h.tags.CreateTag(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Created(c, tag)
}

// listTags godoc
// @Summary 列出标签
// @Description 按名称排序，附带活跃记录的使用数量
// @Tags Tags
// @Produce json
// @Param includeInactive query bool false "包含已停用标签"
// @Success 200 {object} Response{data=[]domain.Tag}
// @Router /v1/tags [get]
func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.tags.ListTags(c.Request.Context(), queryBool(c, "includeInactive"))
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Success(c, tags)
}

func (h *Handler) getTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tag, err := h.tags.GetTag(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Success(c, tag)
}

// updateTag godoc
// @Summary 更新标签
// @Tags Tags
// @Accept json
// @Produce json
// @Param id path int true "标签ID"
// @Param tag body service.UpdateTagInput true "更新信息"
// @Success 200 {object} Response{data=domain.Tag}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/tags/{id} [patch]
func (h *Handler) updateTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input service.UpdateTagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数")
		return
	}

	tag, err := h.tags.UpdateTag(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Success(c, tag)
}

// deleteTag godoc
// @Summary 删除标签
// @Description 默认停用；hard=true 时物理删除并解除全部关联，系统标签需要 force=true
// @Tags Tags
// @Produce json
// @Param id path int true "标签ID"
// @Param hard query bool false "物理删除"
// @Param force query bool false "允许删除系统标签"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /v1/tags/{id} [delete]
func (h *Handler) deleteTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if queryBool(c, "hard") {
		err = h.tags.HardDeleteTag(ctx, id, queryBool(c, "force"))
	} else {
		err = h.tags.DeleteTag(ctx, id)
	}
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	SuccessWithMsg(c, "删除成功", gin.H{"id": id})
}

// mergeTags godoc
// @Summary 合并标签
// @Description 将源标签的关联移动到目标标签，已有目标标签的记录跳过
// @Tags Tags
// @Accept json
// @Produce json
// @Param body body service.MergeTagsInput true "合并参数"
// @Success 200 {object} Response{data=domain.MergeResult}
// @Failure 409 {object} Response
// @Router /v1/tags/merge [post]
func (h *Handler) mergeTags(c *gin.Context) {
	var input service.MergeTagsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数")
		return
	}

	result, err := h.tags.MergeTags(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Success(c, result)
}

func (h *Handler) tagUsage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	usage, err := h.tags.UsageDetails(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}

	Success(c, usage)
}
