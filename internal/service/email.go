package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/storage"
)

// EmailService 封装邮箱记录相关业务操作。
type EmailService struct {
	store     storage.Store
	domains   DomainSource
	search    *SearchService
	validator *domain.EmailValidator
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmailService 创建邮箱记录服务。
func NewEmailService(store storage.Store, domains DomainSource, search *SearchService, metrics *monitoring.Metrics, logger *zap.Logger) *EmailService {
	return &EmailService{
		store:     store,
		domains:   domains,
		search:    search,
		validator: domain.NewEmailValidator(),
		metrics:   metrics,
		logger:    orNop(logger).Named("email"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateEmailInput 定义创建邮箱记录所需的输入。
//
// Address 与 Prefix(+Suffix)+Domain 二选一，同时给出时以 Address 为准。
type CreateEmailInput struct {
	Address   string             `json:"email"`
	Prefix    string             `json:"prefix"`
	Suffix    string             `json:"suffix"`
	Domain    string             `json:"domain"`
	Status    domain.EmailStatus `json:"status"`
	Notes     string             `json:"notes"`
	Metadata  domain.Metadata    `json:"metadata"`
	CreatedBy string             `json:"createdBy"`
	TagIDs    []int64            `json:"tagIds"`

	// 导入时保留原始字段
	CreatedAt  *time.Time `json:"-"`
	LastUsedAt *time.Time `json:"-"`
	Deleted    bool       `json:"-"`
}

// UpdateEmailInput 定义更新邮箱记录的输入，nil 字段保持不变。
type UpdateEmailInput struct {
	Address   *string             `json:"email,omitempty"` // 只能与原地址相同
	Status    *domain.EmailStatus `json:"status,omitempty"`
	Notes     *string             `json:"notes,omitempty"`
	Metadata  domain.Metadata     `json:"metadata,omitempty"` // 整体替换
	CreatedBy *string             `json:"createdBy,omitempty"`
}

// Create 创建邮箱记录
//
// 参数:
//   - input: 创建输入
//
// 返回值:
//   - *domain.Email: 创建的记录（含标签名）
//   - error: 地址不合法或域名未配置时为 ValidationError，地址重复时为 ConflictError
func (s *EmailService) Create(ctx context.Context, input CreateEmailInput) (*domain.Email, error) {
	email, err := s.buildEmail(ctx, input)
	if err != nil {
		return nil, err
	}
	tagIDs := uniqueIDs(input.TagIDs)

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateEmail(ctx, email); err != nil {
			return err
		}
		for _, tagID := range tagIDs {
			if _, err := tx.GetTag(ctx, tagID); err != nil {
				if domain.IsNotFound(err) {
					return domain.NewValidationError("tagIds", "tag %d does not exist", tagID)
				}
				return err
			}
			if _, err := tx.AddEmailTag(ctx, email.ID, tagID); err != nil {
				return err
			}
		}
		return appendLog(ctx, tx, domain.OpEmailCreate, "email", email.ID, domain.Metadata{
			"email": email.Address,
			"tags":  len(tagIDs),
		})
	})
	if err != nil {
		s.logger.Debug("create email failed", zap.String("email", email.Address), zap.Error(err))
		return nil, err
	}

	s.metrics.RecordEmailCreated()
	s.logger.Info("email created", zap.Int64("id", email.ID), zap.String("email", email.Address))

	return s.GetByID(ctx, email.ID)
}

// buildEmail 校验输入并组装记录
func (s *EmailService) buildEmail(ctx context.Context, input CreateEmailInput) (*domain.Email, error) {
	var address, local, host string
	prefix := strings.ToLower(strings.TrimSpace(input.Prefix))
	suffix := strings.ToLower(strings.TrimSpace(input.Suffix))

	if strings.TrimSpace(input.Address) != "" {
		address = domain.NormalizeAddress(input.Address)
		local, host = domain.SplitAddress(address)
		prefix, suffix = splitLocalPart(local, prefix, suffix)
	} else {
		if prefix == "" {
			return nil, domain.NewValidationError("prefix", "prefix or email is required")
		}
		host = strings.ToLower(strings.TrimSpace(input.Domain))
		if host == "" {
			return nil, domain.NewValidationError("domain", "domain is required")
		}
		local = prefix + suffix
		address = local + "@" + host
	}

	if err := s.validator.ValidateEmail(address); err != nil {
		return nil, domain.NewValidationError("email", "%q: %v", address, err)
	}

	allowed, err := s.domains.Domains(ctx)
	if err != nil {
		return nil, err
	}
	if !containsDomain(allowed, host) {
		return nil, domain.NewValidationError("domain", "%q is not a configured domain", host)
	}

	status := input.Status
	if status == "" {
		status = domain.EmailStatusActive
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status %q", status)
	}
	if len(input.Notes) > domain.MaxNotesLength {
		return nil, domain.NewValidationError("notes", "notes exceed %d characters", domain.MaxNotesLength)
	}

	now := s.now()
	email := &domain.Email{
		Address:    address,
		Domain:     host,
		Prefix:     prefix,
		Suffix:     suffix,
		Status:     status,
		Notes:      input.Notes,
		Metadata:   input.Metadata,
		IsActive:   !input.Deleted,
		CreatedBy:  input.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastUsedAt: input.LastUsedAt,
	}
	if email.Metadata == nil {
		email.Metadata = domain.Metadata{}
	}
	if input.CreatedAt != nil && !input.CreatedAt.IsZero() {
		email.CreatedAt = input.CreatedAt.UTC()
	}
	return email, nil
}

// splitLocalPart 让 prefix+suffix 与本地部分保持一致
//
// 后缀不是本地部分的结尾时丢弃；前缀缺失或与本地部分不符时由本地部分去掉后缀得到。
func splitLocalPart(local, prefix, suffix string) (string, string) {
	if !strings.HasSuffix(local, suffix) {
		suffix = ""
	}
	if prefix == "" || prefix+suffix != local {
		prefix = strings.TrimSuffix(local, suffix)
	}
	return prefix, suffix
}

// GetByID 根据 ID 获取邮箱记录（含标签名）
func (s *EmailService) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	email, err := s.store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withTags(ctx, email)
}

// GetByAddress 根据地址获取邮箱记录
func (s *EmailService) GetByAddress(ctx context.Context, address string) (*domain.Email, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, domain.NewValidationError("email", "address is required")
	}
	email, err := s.store.GetEmailByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.withTags(ctx, email)
}

func (s *EmailService) withTags(ctx context.Context, email *domain.Email) (*domain.Email, error) {
	list := []domain.Email{*email}
	if err := attachTags(ctx, s.store, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Update 更新邮箱记录
//
// 地址不可修改；传入与原地址不同的 Address 返回 ValidationError。
func (s *EmailService) Update(ctx context.Context, id int64, input UpdateEmailInput) (*domain.Email, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown status %q", *input.Status)
	}
	if input.Notes != nil && len(*input.Notes) > domain.MaxNotesLength {
		return nil, domain.NewValidationError("notes", "notes exceed %d characters", domain.MaxNotesLength)
	}

	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		email, err := tx.GetEmail(ctx, id)
		if err != nil {
			return err
		}

		changed := []string{}
		if input.Address != nil && domain.NormalizeAddress(*input.Address) != email.Address {
			return domain.NewValidationError("email", "address is immutable")
		}
		if input.Status != nil && *input.Status != email.Status {
			email.Status = *input.Status
			changed = append(changed, "status")
		}
		if input.Notes != nil && *input.Notes != email.Notes {
			email.Notes = *input.Notes
			changed = append(changed, "notes")
		}
		if input.Metadata != nil {
			email.Metadata = input.Metadata
			changed = append(changed, "metadata")
		}
		if input.CreatedBy != nil && *input.CreatedBy != email.CreatedBy {
			email.CreatedBy = *input.CreatedBy
			changed = append(changed, "createdBy")
		}

		if err := tx.UpdateEmail(ctx, email); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpEmailUpdate, "email", id, domain.Metadata{"fields": changed})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("email updated", zap.Int64("id", id))
	return s.GetByID(ctx, id)
}

// SoftDelete 软删除（保留标签关联）
func (s *EmailService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.setActive(ctx, id, false, domain.OpEmailSoftDelete); err != nil {
		return err
	}
	s.metrics.RecordEmailDeleted(false)
	s.logger.Info("email soft deleted", zap.Int64("id", id))
	return nil
}

// Restore 恢复软删除的记录
func (s *EmailService) Restore(ctx context.Context, id int64) error {
	if err := s.setActive(ctx, id, true, domain.OpEmailRestore); err != nil {
		return err
	}
	s.logger.Info("email restored", zap.Int64("id", id))
	return nil
}

func (s *EmailService) setActive(ctx context.Context, id int64, active bool, op string) error {
	return s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.SetEmailActive(ctx, id, active); err != nil {
			return err
		}
		return appendLog(ctx, tx, op, "email", id, nil)
	})
}

// HardDelete 物理删除记录及其全部标签关联
func (s *EmailService) HardDelete(ctx context.Context, id int64) error {
	var address string
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		email, err := tx.GetEmail(ctx, id)
		if err != nil {
			return err
		}
		address = email.Address
		if err := tx.DeleteEmail(ctx, id); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpEmailHardDelete, "email", id, domain.Metadata{"email": address})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordEmailDeleted(true)
	s.logger.Info("email hard deleted", zap.Int64("id", id), zap.String("email", address))
	return nil
}

// MarkUsed 记录最近使用时间
func (s *EmailService) MarkUsed(ctx context.Context, id int64) (*domain.Email, error) {
	at := s.now()
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.TouchEmail(ctx, id, at); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpEmailTouch, "email", id, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// RecordUse 合并 metadata 并记录使用时间，两者在同一事务内完成
func (s *EmailService) RecordUse(ctx context.Context, id int64, extra domain.Metadata) (*domain.Email, error) {
	at := s.now()
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		email, err := tx.GetEmail(ctx, id)
		if err != nil {
			return err
		}
		metadata := domain.Metadata{}
		for k, v := range email.Metadata {
			metadata[k] = v
		}
		keys := make([]string, 0, len(extra))
		for k, v := range extra {
			metadata[k] = v
			keys = append(keys, k)
		}
		sort.Strings(keys)
		email.Metadata = metadata

		if err := tx.UpdateEmail(ctx, email); err != nil {
			return err
		}
		if err := tx.TouchEmail(ctx, id, at); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpEmailTouch, "email", id, domain.Metadata{"metadata": keys})
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Search 简单检索，不分页，按创建时间倒序返回至多 limit 条
//
// 参数:
//   - keyword: 匹配地址和备注
//   - status: 为空时不过滤
//   - tags: 任一标签命中即可
//   - limit: <= 0 时使用默认每页数量
func (s *EmailService) Search(ctx context.Context, keyword string, status domain.EmailStatus, tags []string, limit int) ([]domain.Email, error) {
	if s.search == nil {
		return nil, errors.New("search service not configured")
	}
	filters := domain.SearchFilters{
		Keyword: keyword,
		Status:  status,
		Tags:    tags,
	}
	return s.search.Simple(ctx, filters, limit)
}
