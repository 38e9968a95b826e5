package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/storage"
)

// 默认统计周期数
const defaultPeriodLimit = 30

// SearchService 搜索服务
type SearchService struct {
	store           storage.Store
	defaultPageSize int
	maxPageSize     int
	metrics         *monitoring.Metrics
	logger          *zap.Logger
}

// NewSearchService 创建搜索服务
func NewSearchService(store storage.Store, cfg config.SearchConfig, metrics *monitoring.Metrics, logger *zap.Logger) *SearchService {
	s := &SearchService{
		store:           store,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		metrics:         metrics,
		logger:          orNop(logger).Named("search"),
	}
	if s.maxPageSize <= 0 || s.maxPageSize > domain.MaxPageSize {
		s.maxPageSize = domain.MaxPageSize
	}
	if s.defaultPageSize <= 0 || s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = domain.DefaultPageSize
	}
	return s
}

// AdvancedSearch 高级搜索
//
// 参数:
//   - filters: 过滤条件，各类别之间为 AND，标签之间为 OR
//   - page: 页码（从 1 开始），< 1 时为 1
//   - pageSize: 每页数量，<= 0 时使用默认值，超过上限时截断
//   - sortBy: 排序字段，须在白名单内，默认 createdAt
//   - sortOrder: asc 或 desc，默认 desc
//
// 返回值:
//   - *domain.SearchResult: 当前页记录和由精确计数得出的分页信息
//   - error: 排序字段或过滤条件不合法时为 ValidationError
func (s *SearchService) AdvancedSearch(ctx context.Context, filters domain.SearchFilters, page, pageSize int, sortBy, sortOrder string) (*domain.SearchResult, error) {
	filters, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	page, pageSize = s.normalizePage(page, pageSize)

	if sortBy == "" {
		sortBy = "createdAt"
	}
	column, ok := domain.SortableFields[sortBy]
	if !ok {
		return nil, domain.NewValidationError("sortBy", "unsupported sort field %q", sortBy)
	}
	desc, err := parseSortOrder(sortOrder)
	if err != nil {
		return nil, err
	}

	emails, total, err := s.store.SearchEmails(ctx, storage.EmailQuery{
		Filters:  filters,
		Page:     page,
		PageSize: pageSize,
		SortBy:   column,
		Desc:     desc,
	})
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []domain.Email{}
	}
	if err := attachTags(ctx, s.store, emails); err != nil {
		return nil, err
	}

	order := "asc"
	if desc {
		order = "desc"
	}
	s.logger.Debug("advanced search",
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.Int64("total", total),
	)

	return &domain.SearchResult{
		Items:      emails,
		Pagination: domain.NewPagination(page, pageSize, total),
		Filters:    filters,
		SortBy:     sortBy,
		SortOrder:  order,
	}, nil
}

func (s *SearchService) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return page, pageSize
}

func parseSortOrder(order string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc":
		return true, nil
	case "asc":
		return false, nil
	}
	return false, domain.NewValidationError("sortOrder", "sort order must be asc or desc, got %q", order)
}

// normalizeFilters 规范化并校验过滤条件
func normalizeFilters(f domain.SearchFilters) (domain.SearchFilters, error) {
	f.Keyword = strings.TrimSpace(f.Keyword)
	f.Domain = strings.ToLower(strings.TrimSpace(f.Domain))
	f.CreatedBy = strings.TrimSpace(f.CreatedBy)
	f.Tags = normalizeTagNames(f.Tags)

	if f.Status != "" && !f.Status.Valid() {
		return f, domain.NewValidationError("status", "unknown status %q", f.Status)
	}
	if f.DateField != "" {
		if _, ok := domain.DateFields[f.DateField]; !ok {
			return f, domain.NewValidationError("dateField", "unsupported date field %q", f.DateField)
		}
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return f, domain.NewValidationError("dateFrom", "dateFrom must not be after dateTo")
	}
	return f, nil
}

// Simple 不分页检索，按创建时间倒序返回至多 limit 条
func (s *SearchService) Simple(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Email, error) {
	filters, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}

	emails, _, err := s.store.SearchEmails(ctx, storage.EmailQuery{
		Filters: filters,
		SortBy:  "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []domain.Email{}
	}
	if err := attachTags(ctx, s.store, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// All 按 ID 顺序返回满足条件的全部记录（逐页读取）
func (s *SearchService) All(ctx context.Context, filters domain.SearchFilters) ([]domain.Email, error) {
	filters, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	all := []domain.Email{}
	for page := 1; ; page++ {
		emails, total, err := s.store.SearchEmails(ctx, storage.EmailQuery{
			Filters:  filters,
			Page:     page,
			PageSize: s.maxPageSize,
			SortBy:   "id",
		})
		if err != nil {
			return nil, err
		}
		all = append(all, emails...)
		if len(emails) < s.maxPageSize || int64(len(all)) >= total {
			break
		}
	}
	if err := attachTags(ctx, s.store, all); err != nil {
		return nil, err
	}
	return all, nil
}

// ByMultipleTags 按多个标签查询有效记录
//
// matchAll 为 true 时必须同时带有全部标签，否则任一即可。
func (s *SearchService) ByMultipleTags(ctx context.Context, names []string, matchAll bool, limit int) ([]domain.Email, error) {
	names = normalizeTagNames(names)
	if len(names) == 0 {
		return []domain.Email{}, nil
	}

	emails, err := s.store.EmailsByTags(ctx, names, matchAll, limit)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, s.store, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// StatisticsByPeriod 按周期统计有效记录，最近的周期在前
//
// 参数:
//   - period: day / week（ISO 周）/ month / year
//   - limit: 返回的周期数，<= 0 时为 30
func (s *SearchService) StatisticsByPeriod(ctx context.Context, period domain.StatisticsPeriod, limit int) ([]domain.PeriodBucket, error) {
	if !period.Valid() {
		return nil, domain.NewValidationError("period", "unsupported period %q", period)
	}
	if limit <= 0 {
		limit = defaultPeriodLimit
	}

	emails, err := s.store.ListActiveCreation(ctx)
	if err != nil {
		return nil, err
	}

	buckets := []domain.PeriodBucket{}
	index := map[string]int{}
	for _, e := range emails {
		key := periodKey(e.CreatedAt, period)
		i, ok := index[key]
		if !ok {
			// 记录按创建时间倒序，新周期出现时之前的周期已统计完整
			if len(buckets) == limit {
				break
			}
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, domain.PeriodBucket{Period: key})
		}

		b := &buckets[i]
		b.Total++
		switch e.Status {
		case domain.EmailStatusActive:
			b.Active++
		case domain.EmailStatusInactive:
			b.Inactive++
		case domain.EmailStatusArchived:
			b.Archived++
		}
	}
	return buckets, nil
}

// periodKey 计算时间所属的周期标识（UTC）
func periodKey(t time.Time, period domain.StatisticsPeriod) string {
	t = t.UTC()
	switch period {
	case domain.PeriodDay:
		return t.Format("2006-01-02")
	case domain.PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006")
	}
}

// Overview 记录总览
func (s *SearchService) Overview(ctx context.Context) (*domain.Overview, error) {
	overview, err := s.store.Overview(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.UpdateEmailsActive(overview.TotalEmails)
	return overview, nil
}

// RecentOperations 最近的操作日志
func (s *SearchService) RecentOperations(ctx context.Context, limit int) ([]domain.OperationLog, error) {
	return s.store.ListOperationLogs(ctx, limit)
}
