package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"aliasbox/backend/internal/domain"
)

// tagColumns 读取标签时在同一语句中统计使用次数（只计有效邮箱）
const tagColumns = `tags.*, (
	SELECT COUNT(*) FROM email_tags et
	JOIN emails e ON e.id = et.email_id
	WHERE et.tag_id = tags.id AND e.is_active = 1
) AS usage_count`

// ========== Tag Repository ==========

// CreateTag 创建标签
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Tag{}).Where("name = ?", tag.Name).Count(&count).Error; err != nil {
		return classifyError("create tag", err)
	}
	if count > 0 {
		return domain.NewConflictError("tag", "%q already exists", tag.Name)
	}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return classifyError("create tag", err)
	}
	return nil
}

// GetTag 根据 ID 获取标签
func (s *Store) GetTag(ctx context.Context, id int64) (*domain.Tag, error) {
	var tag domain.Tag
	err := s.db.WithContext(ctx).Model(&domain.Tag{}).Select(tagColumns).Where("tags.id = ?", id).First(&tag).Error
	if err != nil {
		return nil, notFound(err, "tag", id)
	}
	return &tag, nil
}

// GetTagByName 根据名称获取标签（区分大小写）
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	var tag domain.Tag
	err := s.db.WithContext(ctx).Model(&domain.Tag{}).Select(tagColumns).Where("tags.name = ?", name).First(&tag).Error
	if err != nil {
		return nil, notFound(err, "tag", name)
	}
	return &tag, nil
}

// ListTags 按名称排序列出标签
func (s *Store) ListTags(ctx context.Context, includeInactive bool) ([]domain.Tag, error) {
	var tags []domain.Tag
	q := s.db.WithContext(ctx).Model(&domain.Tag{}).Select(tagColumns)
	if !includeInactive {
		q = q.Where("tags.is_active = ?", true)
	}
	if err := q.Order("tags.name ASC").Find(&tags).Error; err != nil {
		return nil, classifyError("list tags", err)
	}
	return tags, nil
}

// UpdateTag 更新标签信息
func (s *Store) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Tag{}).
		Where("name = ? AND id <> ?", tag.Name, tag.ID).Count(&count).Error
	if err != nil {
		return classifyError("update tag", err)
	}
	if count > 0 {
		return domain.NewConflictError("tag", "%q already exists", tag.Name)
	}

	tag.UpdatedAt = time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&domain.Tag{ID: tag.ID}).
		Select("name", "description", "color", "icon", "is_system", "is_active", "updated_at").
		Updates(tag)
	if result.Error != nil {
		return classifyError("update tag", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("tag", tag.ID)
	}
	return nil
}

// DeleteTag 物理删除标签及其关联
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("tag_id = ?", id).Delete(&domain.EmailTag{}).Error; err != nil {
		return classifyError("delete tag links", err)
	}
	result := db.Where("id = ?", id).Delete(&domain.Tag{})
	if result.Error != nil {
		return classifyError("delete tag", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("tag", id)
	}
	return nil
}

// AddEmailTag 添加关联，已存在时返回 false
func (s *Store) AddEmailTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	link := domain.EmailTag{EmailID: emailID, TagID: tagID, CreatedAt: time.Now().UTC()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if result.Error != nil {
		return false, classifyError("add email tag", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RemoveEmailTag 删除关联，不存在时返回 false
func (s *Store) RemoveEmailTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	result := s.db.WithContext(ctx).Where("email_id = ? AND tag_id = ?", emailID, tagID).Delete(&domain.EmailTag{})
	if result.Error != nil {
		return false, classifyError("remove email tag", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetEmailTags 获取邮箱的全部标签
func (s *Store) GetEmailTags(ctx context.Context, emailID int64) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := s.db.WithContext(ctx).Model(&domain.Tag{}).Select(tagColumns).
		Joins("JOIN email_tags ON email_tags.tag_id = tags.id").
		Where("email_tags.email_id = ?", emailID).
		Order("tags.name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, classifyError("get email tags", err)
	}
	return tags, nil
}

// TagNamesByEmail 批量获取邮箱的标签名，按名称排序
func (s *Store) TagNamesByEmail(ctx context.Context, emailIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(emailIDs))
	if len(emailIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		EmailID int64
		Name    string
	}
	err := s.db.WithContext(ctx).Table("email_tags").
		Select("email_tags.email_id, tags.name").
		Joins("JOIN tags ON tags.id = email_tags.tag_id").
		Where("email_tags.email_id IN ?", emailIDs).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, classifyError("tag names", err)
	}
	for _, row := range rows {
		out[row.EmailID] = append(out[row.EmailID], row.Name)
	}
	return out, nil
}

// ListEmailIDsByTag 列出带有该标签的邮箱 ID
func (s *Store) ListEmailIDsByTag(ctx context.Context, tagID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&domain.EmailTag{}).
		Where("tag_id = ?", tagID).Order("email_id ASC").Pluck("email_id", &ids).Error
	if err != nil {
		return nil, classifyError("list tag emails", err)
	}
	return ids, nil
}

// TagUsage 按邮箱状态统计标签使用情况
func (s *Store) TagUsage(ctx context.Context, tagID int64) (*domain.TagUsage, error) {
	tag, err := s.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status   domain.EmailStatus
		IsActive bool
		Count    int
	}
	err = s.db.WithContext(ctx).Table("email_tags").
		Select("emails.status, emails.is_active, COUNT(*) AS count").
		Joins("JOIN emails ON emails.id = email_tags.email_id").
		Where("email_tags.tag_id = ?", tagID).
		Group("emails.status, emails.is_active").
		Scan(&rows).Error
	if err != nil {
		return nil, classifyError("tag usage", err)
	}

	usage := &domain.TagUsage{Tag: *tag}
	for _, row := range rows {
		if !row.IsActive {
			usage.Deleted += row.Count
			continue
		}
		usage.Total += row.Count
		switch row.Status {
		case domain.EmailStatusActive:
			usage.Active += row.Count
		case domain.EmailStatusInactive:
			usage.Inactive += row.Count
		case domain.EmailStatusArchived:
			usage.Archived += row.Count
		}
	}
	return usage, nil
}
