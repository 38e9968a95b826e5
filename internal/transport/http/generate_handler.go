package httptransport

import (
	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/service"
)

// generate godoc
// @Summary 生成邮箱
// @Description 按命名策略创建一条记录；waitForCode 为 true 时等待验证码并写入 metadata
// @Tags Generator
// @Accept json
// @Produce json
// @Param body body service.GenerateInput true "生成参数"
// @Success 201 {object} Response{data=service.GenerateResult}
// @Failure 400 {object} Response
// @Router /v1/generate [post]
func (h *Handler) generate(c *gin.Context) {
	var input service.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "generator", err)
		return
	}
	Created(c, result)
}
