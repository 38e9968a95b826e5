package httptransport

import (
	"strings"

	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/service"
)

// ========== Email Handlers ==========

type createEmailRequest struct {
	service.CreateEmailInput
	Tags []string `json:"tags"` // 按名称关联，不存在的标签自动创建
}

// createEmail godoc
// @Summary 创建邮箱记录
// @Tags Emails
// @Accept json
// @Produce json
// @Param email body createEmailRequest true "邮箱信息"
// @Success 201 {object} Response{data=domain.Email}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /v1/emails [post]
func (h *Handler) createEmail(c *gin.Context) {
	var req createEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	input := req.CreateEmailInput
	if len(req.Tags) > 0 {
		tags, err := h.tags.EnsureTags(c.Request.Context(), req.Tags)
		if err != nil {
			h.respondError(c, "email", err)
			return
		}
		for _, t := range tags {
			input.TagIDs = append(input.TagIDs, t.ID)
		}
	}

	email, err := h.emails.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	Created(c, email)
}

// listEmails godoc
// @Summary 简单检索邮箱记录
// @Description 传入 email 参数时按地址精确查找，否则按关键字、状态、标签检索
// @Tags Emails
// @Produce json
// @Param email query string false "完整地址"
// @Param keyword query string false "关键字"
// @Param status query string false "状态"
// @Param tags query string false "逗号分隔的标签名"
// @Param limit query int false "最多返回条数"
// @Success 200 {object} Response{data=[]domain.Email}
// @Router /v1/emails [get]
func (h *Handler) listEmails(c *gin.Context) {
	ctx := c.Request.Context()

	if address := c.Query("email"); address != "" {
		email, err := h.emails.GetByAddress(ctx, address)
		if err != nil {
			h.respondError(c, "email", err)
			return
		}
		Success(c, []domain.Email{*email})
		return
	}

	emails, err := h.emails.Search(ctx,
		c.Query("keyword"),
		domain.EmailStatus(c.Query("status")),
		splitList(c.Query("tags")),
		queryInt(c, "limit", 0),
	)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	Success(c, emails)
}

func (h *Handler) getEmail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	email, err := h.emails.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	Success(c, email)
}

// updateEmail godoc
// @Summary 更新邮箱记录
// @Description 地址不可修改；metadata 整体替换
// @Tags Emails
// @Accept json
// @Produce json
// @Param id path int true "记录ID"
// @Param email body service.UpdateEmailInput true "更新信息"
// @Success 200 {object} Response{data=domain.Email}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/emails/{id} [patch]
func (h *Handler) updateEmail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input service.UpdateEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	email, err := h.emails.Update(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	Success(c, email)
}

// deleteEmail 删除邮箱记录，默认软删除，hard=true 时连同标签关联物理删除
func (h *Handler) deleteEmail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if queryBool(c, "hard") {
		err = h.emails.HardDelete(ctx, id)
	} else {
		err = h.emails.SoftDelete(ctx, id)
	}
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	SuccessWithMsg(c, "删除成功", gin.H{"id": id, "hard": queryBool(c, "hard")})
}

func (h *Handler) restoreEmail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.emails.Restore(ctx, id); err != nil {
		h.respondError(c, "email", err)
		return
	}
	email, err := h.emails.GetByID(ctx, id)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	SuccessWithMsg(c, "恢复成功", email)
}

func (h *Handler) markEmailUsed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	email, err := h.emails.MarkUsed(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "email", err)
		return
	}
	Success(c, email)
}

// ========== Email Tag Handlers ==========

type emailTagsRequest struct {
	TagIDs []int64        `json:"tagIds"`
	Names  []string       `json:"tags"` // 按名称指定，不存在时自动创建
	Mode   domain.TagMode `json:"mode"` // add（默认）、remove、replace
}

// resolveTagIDs 合并 ID 与名称两种指定方式
func (h *Handler) resolveTagIDs(c *gin.Context, req emailTagsRequest) ([]int64, bool) {
	ids := append([]int64(nil), req.TagIDs...)
	if len(req.Names) == 0 {
		return ids, true
	}
	tags, err := h.tags.EnsureTags(c.Request.Context(), req.Names)
	if err != nil {
		h.respondError(c, "tag", err)
		return nil, false
	}
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids, true
}

func (h *Handler) getEmailTags(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tags, err := h.tags.GetEmailTags(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}
	Success(c, tags)
}

// addEmailTags godoc
// @Summary 为记录添加标签
// @Description mode 为 add 时逐个添加并返回每个标签的结果，remove 和 replace 整体执行
// @Tags Emails
// @Accept json
// @Produce json
// @Param id path int true "记录ID"
// @Param body body emailTagsRequest true "标签"
// @Success 200 {object} Response
// @Router /v1/emails/{id}/tags [post]
func (h *Handler) addEmailTags(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req emailTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	ids, ok := h.resolveTagIDs(c, req)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch req.Mode {
	case "", domain.TagModeAdd:
		result, err := h.tags.BatchAddTags(ctx, id, ids)
		if err != nil {
			h.respondError(c, "tag", err)
			return
		}
		Success(c, result)
	case domain.TagModeRemove:
		result, err := h.tags.BatchRemoveTags(ctx, id, ids)
		if err != nil {
			h.respondError(c, "tag", err)
			return
		}
		Success(c, result)
	default:
		if err := h.tags.ApplyTags(ctx, id, ids, req.Mode); err != nil {
			h.respondError(c, "tag", err)
			return
		}
		h.emailTagsResponse(c, id)
	}
}

// replaceEmailTags 用给定集合替换记录的全部标签
func (h *Handler) replaceEmailTags(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req emailTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	ids, ok := h.resolveTagIDs(c, req)
	if !ok {
		return
	}

	tags, err := h.tags.ReplaceTags(c.Request.Context(), id, ids)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}
	Success(c, tags)
}

func (h *Handler) removeEmailTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tagID, ok := parseID(c, "tagId")
	if !ok {
		return
	}

	removed, err := h.tags.RemoveTag(c.Request.Context(), id, tagID)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}
	Success(c, gin.H{"removed": removed})
}

func (h *Handler) emailTagsResponse(c *gin.Context, id int64) {
	tags, err := h.tags.GetEmailTags(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "tag", err)
		return
	}
	Success(c, tags)
}

// splitList 拆分逗号分隔的查询参数
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
