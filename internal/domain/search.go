package domain

import "time"

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// 可排序字段（白名单）
var SortableFields = map[string]string{
	"id":         "id",
	"email":      "email",
	"domain":     "domain",
	"status":     "status",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"lastUsedAt": "last_used_at",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// 可用于日期范围过滤的字段
var DateFields = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"lastUsedAt":   "last_used_at",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"last_used_at": "last_used_at",
}

// SearchFilters 高级搜索条件，各类别之间为 AND，Tags 内部为 OR
type SearchFilters struct {
	Keyword        string      `json:"keyword,omitempty"`      // 匹配地址和备注
	Domain         string      `json:"domain,omitempty"`       // 精确匹配
	DomainPrefix   bool        `json:"domainPrefix,omitempty"` // 为 true 时 Domain 按前缀匹配
	Status         EmailStatus `json:"status,omitempty"`
	Tags           []string    `json:"tags,omitempty"` // 任一标签命中即可
	CreatedBy      string      `json:"createdBy,omitempty"`
	HasNotes       *bool       `json:"hasNotes,omitempty"`
	DateField      string      `json:"dateField,omitempty"` // 默认 createdAt
	DateFrom       *time.Time  `json:"dateFrom,omitempty"`
	DateTo         *time.Time  `json:"dateTo,omitempty"`
	IncludeDeleted bool        `json:"includeDeleted,omitempty"`
}

// Pagination 分页信息，全部由精确计数得出
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination 根据总数计算分页信息
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// SearchResult 高级搜索结果
type SearchResult struct {
	Items      []Email       `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Filters    SearchFilters `json:"filters"`
	SortBy     string        `json:"sortBy"`
	SortOrder  string        `json:"sortOrder"`
}
