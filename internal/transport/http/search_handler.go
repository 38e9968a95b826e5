package httptransport

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aliasbox/backend/internal/domain"
)

// ========== Search Handlers ==========

// filtersFromQuery 从查询参数构造搜索条件
//
// 日期接受 RFC3339 或 2006-01-02 两种格式，后者按 UTC 零点解析。
func filtersFromQuery(c *gin.Context) (domain.SearchFilters, error) {
	filters := domain.SearchFilters{
		Keyword:        c.Query("keyword"),
		Domain:         c.Query("domain"),
		DomainPrefix:   queryBool(c, "domainPrefix"),
		Status:         domain.EmailStatus(c.Query("status")),
		Tags:           splitList(c.Query("tags")),
		CreatedBy:      c.Query("createdBy"),
		DateField:      c.Query("dateField"),
		IncludeDeleted: queryBool(c, "includeDeleted"),
	}

	if v := c.Query("hasNotes"); v != "" {
		hasNotes, err := strconv.ParseBool(v)
		if err != nil {
			return filters, domain.NewValidationError("hasNotes", "invalid boolean %q", v)
		}
		filters.HasNotes = &hasNotes
	}

	var err error
	if filters.DateFrom, err = queryTime(c, "dateFrom"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = queryTime(c, "dateTo"); err != nil {
		return filters, err
	}
	return filters, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, domain.NewValidationError(name, "invalid time %q", v)
}

// searchEmails godoc
// @Summary 高级搜索（查询参数）
// @Description 各条件之间为 AND，tags 内部为 OR；分页信息由精确计数得出
// @Tags Search
// @Produce json
// @Param keyword query string false "匹配地址和备注"
// @Param domain query string false "域名"
// @Param status query string false "状态"
// @Param tags query string false "逗号分隔的标签名"
// @Param dateFrom query string false "起始时间"
// @Param dateTo query string false "结束时间"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param sortBy query string false "排序字段"
// @Param sortOrder query string false "asc 或 desc"
// @Success 200 {object} Response{data=domain.SearchResult}
// @Router /v1/search [get]
func (h *Handler) searchEmails(c *gin.Context) {
	filters, err := filtersFromQuery(c)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}

	result, err := h.search.AdvancedSearch(c.Request.Context(), filters,
		queryInt(c, "page", 1),
		queryInt(c, "pageSize", 0),
		c.Query("sortBy"),
		c.Query("sortOrder"),
	)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}
	Success(c, result)
}

type advancedSearchRequest struct {
	Filters   domain.SearchFilters `json:"filters"`
	Page      int                  `json:"page"`
	PageSize  int                  `json:"pageSize"`
	SortBy    string               `json:"sortBy"`
	SortOrder string               `json:"sortOrder"`
}

// advancedSearch 高级搜索（JSON 请求体）
func (h *Handler) advancedSearch(c *gin.Context) {
	var req advancedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	result, err := h.search.AdvancedSearch(c.Request.Context(), req.Filters, req.Page, req.PageSize, req.SortBy, req.SortOrder)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}
	Success(c, result)
}

// searchByTags 按多个标签检索，matchAll=true 时要求全部命中
func (h *Handler) searchByTags(c *gin.Context) {
	emails, err := h.search.ByMultipleTags(c.Request.Context(),
		splitList(c.Query("names")),
		queryBool(c, "matchAll"),
		queryInt(c, "limit", 0),
	)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}
	Success(c, emails)
}

// ========== Statistics Handlers ==========

// statisticsByPeriod godoc
// @Summary 按周期统计创建数量
// @Tags Statistics
// @Produce json
// @Param period query string false "day、week、month（默认）或 year"
// @Param limit query int false "最多返回的周期数"
// @Success 200 {object} Response{data=[]domain.PeriodBucket}
// @Failure 400 {object} Response
// @Router /v1/stats/period [get]
func (h *Handler) statisticsByPeriod(c *gin.Context) {
	period := domain.StatisticsPeriod(c.DefaultQuery("period", string(domain.PeriodMonth)))
	buckets, err := h.search.StatisticsByPeriod(c.Request.Context(), period, queryInt(c, "limit", 0))
	if err != nil {
		h.respondError(c, "stats", err)
		return
	}
	Success(c, buckets)
}

func (h *Handler) overview(c *gin.Context) {
	overview, err := h.search.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, "stats", err)
		return
	}
	Success(c, overview)
}

// recentOperations 最近的操作日志
func (h *Handler) recentOperations(c *gin.Context) {
	logs, err := h.search.RecentOperations(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		h.respondError(c, "stats", err)
		return
	}
	Success(c, logs)
}
