package sqlite

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/storage"
)

// likeEscaper 转义 LIKE 通配符
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SearchEmails 按条件检索邮箱记录，返回当前页和精确总数
func (s *Store) SearchEmails(ctx context.Context, query storage.EmailQuery) ([]domain.Email, int64, error) {
	q, err := s.applyFilters(s.db.WithContext(ctx).Model(&domain.Email{}), query.Filters)
	if err != nil {
		return nil, 0, err
	}
	q = q.Session(&gorm.Session{})

	column := "created_at"
	if query.SortBy != "" {
		column = query.SortBy
	}
	if !isKnownColumn("emails", column) {
		return nil, 0, domain.NewValidationError("sortBy", "unsupported sort column %q", column)
	}
	dir := "ASC"
	if query.Desc {
		dir = "DESC"
	}
	// id 作为第二排序键保证结果稳定
	order := fmt.Sprintf("%s %s, id %s", column, dir, dir)

	var emails []domain.Email
	if query.Limit > 0 {
		if err := q.Order(order).Limit(query.Limit).Find(&emails).Error; err != nil {
			return nil, 0, classifyError("search emails", err)
		}
		return emails, int64(len(emails)), nil
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classifyError("count emails", err)
	}

	offset := (query.Page - 1) * query.PageSize
	if err := q.Order(order).Limit(query.PageSize).Offset(offset).Find(&emails).Error; err != nil {
		return nil, 0, classifyError("search emails", err)
	}
	return emails, total, nil
}

// applyFilters 追加过滤条件，类别之间为 AND
func (s *Store) applyFilters(q *gorm.DB, f domain.SearchFilters) (*gorm.DB, error) {
	if !f.IncludeDeleted {
		q = q.Where("emails.is_active = ?", true)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := containsPattern(kw)
		q = q.Where(`(emails.email LIKE ? ESCAPE '\' OR emails.notes LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if d := strings.ToLower(strings.TrimSpace(f.Domain)); d != "" {
		if f.DomainPrefix {
			q = q.Where(`emails.domain LIKE ? ESCAPE '\'`, likeEscaper.Replace(d)+"%")
		} else {
			q = q.Where("emails.domain = ?", d)
		}
	}
	if f.Status != "" {
		q = q.Where("emails.status = ?", string(f.Status))
	}
	if len(f.Tags) > 0 {
		// 任一标签命中即可
		sub := s.db.Table("email_tags").
			Select("email_tags.email_id").
			Joins("JOIN tags ON tags.id = email_tags.tag_id").
			Where("tags.name IN ?", f.Tags)
		q = q.Where("emails.id IN (?)", sub)
	}
	if f.CreatedBy != "" {
		q = q.Where("emails.created_by = ?", f.CreatedBy)
	}
	if f.HasNotes != nil {
		if *f.HasNotes {
			q = q.Where("emails.notes IS NOT NULL AND TRIM(emails.notes) <> ''")
		} else {
			q = q.Where("(emails.notes IS NULL OR TRIM(emails.notes) = '')")
		}
	}
	if f.DateFrom != nil || f.DateTo != nil {
		field := "createdAt"
		if f.DateField != "" {
			field = f.DateField
		}
		column, ok := domain.DateFields[field]
		if !ok {
			return nil, domain.NewValidationError("dateField", "unsupported date field %q", f.DateField)
		}
		if f.DateFrom != nil {
			q = q.Where("emails."+column+" >= ?", f.DateFrom.UTC())
		}
		if f.DateTo != nil {
			q = q.Where("emails."+column+" <= ?", f.DateTo.UTC())
		}
	}
	return q, nil
}

// EmailsByTags 按多个标签查询有效邮箱记录
//
// matchAll 为 true 时记录必须带有全部标签，否则任一即可。
func (s *Store) EmailsByTags(ctx context.Context, names []string, matchAll bool, limit int) ([]domain.Email, error) {
	emails := []domain.Email{}
	names = uniqueStrings(names)
	if len(names) == 0 {
		return emails, nil
	}

	sub := s.db.Table("email_tags").
		Select("email_tags.email_id").
		Joins("JOIN tags ON tags.id = email_tags.tag_id").
		Where("tags.name IN ?", names).
		Group("email_tags.email_id")
	if matchAll {
		sub = sub.Having("COUNT(DISTINCT tags.id) = ?", len(names))
	}

	q := s.db.WithContext(ctx).Model(&domain.Email{}).
		Where("is_active = ?", true).
		Where("id IN (?)", sub).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&emails).Error; err != nil {
		return nil, classifyError("emails by tags", err)
	}
	return emails, nil
}

// ListActiveCreation 返回有效记录的创建时间和状态，用于按周期统计
func (s *Store) ListActiveCreation(ctx context.Context) ([]domain.Email, error) {
	var emails []domain.Email
	err := s.db.WithContext(ctx).Model(&domain.Email{}).
		Select("id", "status", "created_at").
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&emails).Error
	if err != nil {
		return nil, classifyError("list creation", err)
	}
	return emails, nil
}

// Overview 统计记录总览
func (s *Store) Overview(ctx context.Context) (*domain.Overview, error) {
	db := s.db.WithContext(ctx)
	overview := &domain.Overview{
		ByStatus: map[domain.EmailStatus]int64{},
		ByDomain: map[string]int64{},
	}

	if err := db.Model(&domain.Email{}).Where("is_active = ?", true).Count(&overview.TotalEmails).Error; err != nil {
		return nil, classifyError("overview", err)
	}
	if err := db.Model(&domain.Email{}).Where("is_active = ?", false).Count(&overview.DeletedEmails).Error; err != nil {
		return nil, classifyError("overview", err)
	}

	var byStatus []struct {
		Status domain.EmailStatus
		Count  int64
	}
	if err := db.Model(&domain.Email{}).Select("status, COUNT(*) AS count").
		Where("is_active = ?", true).Group("status").Scan(&byStatus).Error; err != nil {
		return nil, classifyError("overview", err)
	}
	for _, row := range byStatus {
		overview.ByStatus[row.Status] = row.Count
	}

	var byDomain []struct {
		Domain string
		Count  int64
	}
	if err := db.Model(&domain.Email{}).Select("domain, COUNT(*) AS count").
		Where("is_active = ?", true).Group("domain").Scan(&byDomain).Error; err != nil {
		return nil, classifyError("overview", err)
	}
	for _, row := range byDomain {
		overview.ByDomain[row.Domain] = row.Count
	}

	if err := db.Model(&domain.Tag{}).Where("is_active = ?", true).Count(&overview.TotalTags).Error; err != nil {
		return nil, classifyError("overview", err)
	}
	return overview, nil
}
