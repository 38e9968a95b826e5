package sqlite

import (
	"context"
	"time"

	"aliasbox/backend/internal/domain"
)

// ========== Email Repository ==========

// CreateEmail 写入新的邮箱记录
func (s *Store) CreateEmail(ctx context.Context, email *domain.Email) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Email{}).Where("email = ?", email.Address).Count(&count).Error; err != nil {
		return classifyError("create email", err)
	}
	if count > 0 {
		return domain.NewConflictError("email", "%s already exists", email.Address)
	}
	if err := s.db.WithContext(ctx).Create(email).Error; err != nil {
		return classifyError("create email", err)
	}
	return nil
}

// GetEmail 根据 ID 获取邮箱记录（包含已软删除的记录）
func (s *Store) GetEmail(ctx context.Context, id int64) (*domain.Email, error) {
	var email domain.Email
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		return nil, notFound(err, "email", id)
	}
	return &email, nil
}

// GetEmailByAddress 根据完整地址获取邮箱记录
func (s *Store) GetEmailByAddress(ctx context.Context, address string) (*domain.Email, error) {
	var email domain.Email
	if err := s.db.WithContext(ctx).Where("email = ?", address).First(&email).Error; err != nil {
		return nil, notFound(err, "email", address)
	}
	return &email, nil
}

// emailMutableColumns 更新时允许写入的列，地址和创建时间不可变
var emailMutableColumns = []string{
	"domain", "prefix", "suffix", "status", "notes", "metadata",
	"is_active", "last_used_at", "created_by", "updated_at",
}

// UpdateEmail 按 ID 覆盖可变字段
func (s *Store) UpdateEmail(ctx context.Context, email *domain.Email) error {
	email.UpdatedAt = time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&domain.Email{ID: email.ID}).
		Select(emailMutableColumns).
		Updates(email)
	if result.Error != nil {
		return classifyError("update email", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("email", email.ID)
	}
	return nil
}

// SetEmailActive 设置软删除标记
func (s *Store) SetEmailActive(ctx context.Context, id int64, active bool) error {
	result := s.db.WithContext(ctx).Model(&domain.Email{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return classifyError("set email active", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("email", id)
	}
	return nil
}

// TouchEmail 更新最近使用时间
func (s *Store) TouchEmail(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&domain.Email{}).Where("id = ?", id).
		Updates(map[string]any{"last_used_at": at.UTC(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return classifyError("touch email", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("email", id)
	}
	return nil
}

// DeleteEmail 物理删除邮箱记录及其标签关联
func (s *Store) DeleteEmail(ctx context.Context, id int64) error {
	db := s.db.WithContext(ctx)
	// 先删关联，不依赖 foreign_keys pragma
	if err := db.Where("email_id = ?", id).Delete(&domain.EmailTag{}).Error; err != nil {
		return classifyError("delete email tags", err)
	}
	result := db.Where("id = ?", id).Delete(&domain.Email{})
	if result.Error != nil {
		return classifyError("delete email", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("email", id)
	}
	return nil
}

// ListEmails 按 ID 顺序返回全部邮箱记录
func (s *Store) ListEmails(ctx context.Context, includeDeleted bool) ([]domain.Email, error) {
	var emails []domain.Email
	q := s.db.WithContext(ctx).Model(&domain.Email{})
	if !includeDeleted {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("id ASC").Find(&emails).Error; err != nil {
		return nil, classifyError("list emails", err)
	}
	return emails, nil
}
