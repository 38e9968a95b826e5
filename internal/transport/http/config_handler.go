package httptransport

import (
	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/domain"
)

// ========== Vault Handlers ==========

type unlockRequest struct {
	Password string `json:"password" binding:"required"`
}

// unlockVault godoc
// @Summary 解锁配置加密
// @Description 首次解锁时生成校验值并加密已有的明文占位配置；密码错误返回 422
// @Tags Config
// @Accept json
// @Produce json
// @Param body body unlockRequest true "主密码"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 422 {object} Response
// @Router /v1/vault/unlock [post]
func (h *Handler) unlockVault(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.configs.Unlock(c.Request.Context(), req.Password); err != nil {
		h.respondError(c, "vault", err)
		return
	}
	SuccessWithMsg(c, "解锁成功", gin.H{"unlocked": true})
}

func (h *Handler) vaultStatus(c *gin.Context) {
	Success(c, gin.H{"unlocked": h.configs.Unlocked()})
}

// ========== Domain Handlers ==========

func (h *Handler) listDomains(c *gin.Context) {
	domains, err := h.configs.Domains(c.Request.Context())
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, domains)
}

type setDomainsRequest struct {
	Domains []string `json:"domains" binding:"required"`
}

// setDomains 保存可用域名列表，保存后立即生效
func (h *Handler) setDomains(c *gin.Context) {
	var req setDomainsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	domains, err := h.configs.SetDomains(c.Request.Context(), req.Domains)
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, domains)
}

// ========== Config Handlers ==========

func (h *Handler) getConfigSection(c *gin.Context) {
	section := domain.ConfigSection(c.Param("section"))
	values, err := h.configs.GetSection(c.Request.Context(), section)
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, values)
}

func (h *Handler) getConfig(c *gin.Context) {
	section := domain.ConfigSection(c.Param("section"))
	key := c.Param("key")

	value, err := h.configs.Get(c.Request.Context(), section, key)
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, gin.H{"section": section, "key": key, "value": value})
}

type setConfigRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// setConfig godoc
// @Summary 保存配置项
// @Description 每次保存生成新版本；security 分区在已解锁时加密保存
// @Tags Config
// @Accept json
// @Produce json
// @Param section path string true "domain、security 或 system"
// @Param key path string true "配置键"
// @Param body body setConfigRequest true "配置值"
// @Success 200 {object} Response{data=domain.ConfigEntry}
// @Failure 400 {object} Response
// @Router /v1/config/{section}/{key} [put]
func (h *Handler) setConfig(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	entry, err := h.configs.Set(c.Request.Context(), domain.ConfigSection(c.Param("section")), c.Param("key"), req.Value, req.Description)
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, entry)
}

func (h *Handler) configHistory(c *gin.Context) {
	history, err := h.configs.History(c.Request.Context(), domain.ConfigSection(c.Param("section")), c.Param("key"))
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, history)
}

type rollbackRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}

// rollbackConfig 以指定历史版本的值生成新版本
func (h *Handler) rollbackConfig(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	entry, err := h.configs.Rollback(c.Request.Context(), domain.ConfigSection(c.Param("section")), c.Param("key"), req.Version)
	if err != nil {
		h.respondError(c, "config", err)
		return
	}
	Success(c, entry)
}
