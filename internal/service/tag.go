package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/storage"
)

// DefaultTagColor 未指定颜色时使用的默认颜色
const DefaultTagColor = "#6B7280"

// TagService 标签服务
type TagService struct {
	store   storage.Store
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewTagService 创建标签服务
func NewTagService(store storage.Store, metrics *monitoring.Metrics, logger *zap.Logger) *TagService {
	return &TagService{
		store:   store,
		metrics: metrics,
		logger:  orNop(logger).Named("tag"),
	}
}

// CreateTagInput 创建标签输入
type CreateTagInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	IsSystem    bool   `json:"isSystem"`
}

// UpdateTagInput 更新标签输入，nil 字段保持不变
type UpdateTagInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// MergeTagsInput 合并标签输入
type MergeTagsInput struct {
	SourceID     int64 `json:"sourceId"`
	TargetID     int64 `json:"targetId"`
	DeleteSource bool  `json:"deleteSource"`
	Force        bool  `json:"force"` // 允许删除系统标签
}

// CreateTag 创建标签
//
// 参数:
//   - input: 创建标签输入，名称会去除首尾空白
//
// 返回值:
//   - *domain.Tag: 创建的标签
//   - error: 名称或颜色不合法时为 ValidationError，重名时为 ConflictError
func (s *TagService) CreateTag(ctx context.Context, input CreateTagInput) (*domain.Tag, error) {
	tag, err := newTag(input)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateTag(ctx, tag); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagCreate, "tag", tag.ID, domain.Metadata{"name": tag.Name})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTagOperation("create")
	s.logger.Info("tag created", zap.Int64("id", tag.ID), zap.String("name", tag.Name))
	return tag, nil
}

func newTag(input CreateTagInput) (*domain.Tag, error) {
	name := domain.NormalizeTagName(input.Name)
	if err := domain.ValidateTagName(name); err != nil {
		return nil, domain.NewValidationError("name", "%v", err)
	}
	color := input.Color
	if color == "" {
		color = DefaultTagColor
	}
	if err := domain.ValidateColorCode(color); err != nil {
		return nil, domain.NewValidationError("color", "%v", err)
	}

	now := time.Now().UTC()
	return &domain.Tag{
		Name:        name,
		Description: input.Description,
		Color:       color,
		Icon:        input.Icon,
		IsSystem:    input.IsSystem,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetTag 获取标签（含实时使用次数）
func (s *TagService) GetTag(ctx context.Context, id int64) (*domain.Tag, error) {
	return s.store.GetTag(ctx, id)
}

// GetTagByName 根据名称获取标签
func (s *TagService) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	return s.store.GetTagByName(ctx, domain.NormalizeTagName(name))
}

// ListTags 列出标签
func (s *TagService) ListTags(ctx context.Context, includeInactive bool) ([]domain.Tag, error) {
	return s.store.ListTags(ctx, includeInactive)
}

// UpdateTag 更新标签
//
// 参数:
//   - id: 标签ID
//   - input: 更新输入
//
// 返回值:
//   - *domain.Tag: 更新后的标签
//   - error: 错误信息
func (s *TagService) UpdateTag(ctx context.Context, id int64, input UpdateTagInput) (*domain.Tag, error) {
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		tag, err := tx.GetTag(ctx, id)
		if err != nil {
			return err
		}

		if input.Name != nil {
			name := domain.NormalizeTagName(*input.Name)
			if err := domain.ValidateTagName(name); err != nil {
				return domain.NewValidationError("name", "%v", err)
			}
			tag.Name = name
		}
		if input.Color != nil {
			if err := domain.ValidateColorCode(*input.Color); err != nil {
				return domain.NewValidationError("color", "%v", err)
			}
			tag.Color = *input.Color
		}
		if input.Description != nil {
			tag.Description = *input.Description
		}
		if input.Icon != nil {
			tag.Icon = *input.Icon
		}
		if input.IsActive != nil {
			if !*input.IsActive && tag.IsSystem {
				return domain.NewValidationError("isActive", "system tag %q cannot be disabled", tag.Name)
			}
			tag.IsActive = *input.IsActive
		}

		if err := tx.UpdateTag(ctx, tag); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagUpdate, "tag", id, domain.Metadata{"name": tag.Name})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTagOperation("update")
	return s.store.GetTag(ctx, id)
}

// DeleteTag 停用标签（软删除），系统标签不可删除
func (s *TagService) DeleteTag(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		tag, err := tx.GetTag(ctx, id)
		if err != nil {
			return err
		}
		if tag.IsSystem {
			return domain.NewValidationError("id", "system tag %q cannot be deleted", tag.Name)
		}
		tag.IsActive = false
		if err := tx.UpdateTag(ctx, tag); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagDelete, "tag", id, domain.Metadata{"name": tag.Name, "hard": false})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordTagOperation("delete")
	s.logger.Info("tag disabled", zap.Int64("id", id))
	return nil
}

// HardDeleteTag 物理删除标签及其全部关联
//
// 系统标签需要 force 才能删除。
func (s *TagService) HardDeleteTag(ctx context.Context, id int64, force bool) error {
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		tag, err := tx.GetTag(ctx, id)
		if err != nil {
			return err
		}
		if tag.IsSystem && !force {
			return domain.NewValidationError("id", "system tag %q cannot be deleted without force", tag.Name)
		}
		if err := tx.DeleteTag(ctx, id); err != nil {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagDelete, "tag", id, domain.Metadata{"name": tag.Name, "hard": true})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordTagOperation("hard_delete")
	s.logger.Info("tag deleted", zap.Int64("id", id))
	return nil
}

// EnsureTags 按名称获取标签，不存在的自动创建
//
// 返回顺序与去重后的名称顺序一致。
func (s *TagService) EnsureTags(ctx context.Context, names []string) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		tags, err = ensureTags(ctx, tx, names)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func ensureTags(ctx context.Context, tx storage.Store, names []string) ([]domain.Tag, error) {
	names = normalizeTagNames(names)
	tags := make([]domain.Tag, 0, len(names))
	for _, name := range names {
		tag, err := tx.GetTagByName(ctx, name)
		if err == nil {
			tags = append(tags, *tag)
			continue
		}
		if !domain.IsNotFound(err) {
			return nil, err
		}

		tag, err = newTag(CreateTagInput{Name: name})
		if err != nil {
			return nil, err
		}
		if err := tx.CreateTag(ctx, tag); err != nil {
			return nil, err
		}
		if err := appendLog(ctx, tx, domain.OpTagCreate, "tag", tag.ID, domain.Metadata{"name": tag.Name, "auto": true}); err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

// lookupTags 按名称查找已存在的标签，返回找到的标签和缺失的名称
func lookupTags(ctx context.Context, st storage.Store, names []string) ([]domain.Tag, []string, error) {
	var (
		found   []domain.Tag
		missing []string
	)
	for _, name := range normalizeTagNames(names) {
		tag, err := st.GetTagByName(ctx, name)
		if err != nil {
			if domain.IsNotFound(err) {
				missing = append(missing, name)
				continue
			}
			return nil, nil, err
		}
		found = append(found, *tag)
	}
	return found, missing, nil
}

// AddTag 为邮箱添加标签，已存在的关联返回 false
func (s *TagService) AddTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	var added bool
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := checkLink(ctx, tx, emailID, tagID); err != nil {
			return err
		}
		var err error
		added, err = tx.AddEmailTag(ctx, emailID, tagID)
		if err != nil || !added {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagAttach, "email", emailID, domain.Metadata{"tagId": tagID})
	})
	if err != nil {
		return false, err
	}
	if added {
		s.metrics.RecordTagOperation("attach")
	}
	return added, nil
}

// RemoveTag 移除邮箱的标签，关联不存在时返回 false
func (s *TagService) RemoveTag(ctx context.Context, emailID, tagID int64) (bool, error) {
	var removed bool
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := checkLink(ctx, tx, emailID, tagID); err != nil {
			return err
		}
		var err error
		removed, err = tx.RemoveEmailTag(ctx, emailID, tagID)
		if err != nil || !removed {
			return err
		}
		return appendLog(ctx, tx, domain.OpTagDetach, "email", emailID, domain.Metadata{"tagId": tagID})
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.metrics.RecordTagOperation("detach")
	}
	return removed, nil
}

// checkLink 确认邮箱和标签都存在
func checkLink(ctx context.Context, tx storage.Store, emailID, tagID int64) error {
	if _, err := tx.GetEmail(ctx, emailID); err != nil {
		return err
	}
	if _, err := tx.GetTag(ctx, tagID); err != nil {
		return err
	}
	return nil
}

// ReplaceTags 将邮箱的标签集合替换为 tagIDs
//
// 在一个事务中计算差异并增删，其他读取者不会看到中间状态。
func (s *TagService) ReplaceTags(ctx context.Context, emailID int64, tagIDs []int64) ([]domain.Tag, error) {
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		return replaceTags(ctx, tx, emailID, tagIDs)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTagOperation("replace")
	return s.store.GetEmailTags(ctx, emailID)
}

func replaceTags(ctx context.Context, tx storage.Store, emailID int64, tagIDs []int64) error {
	if _, err := tx.GetEmail(ctx, emailID); err != nil {
		return err
	}
	want := make(map[int64]struct{}, len(tagIDs))
	for _, id := range uniqueIDs(tagIDs) {
		if _, err := tx.GetTag(ctx, id); err != nil {
			return err
		}
		want[id] = struct{}{}
	}

	current, err := tx.GetEmailTags(ctx, emailID)
	if err != nil {
		return err
	}
	have := make(map[int64]struct{}, len(current))
	var removed, added []int64
	for _, tag := range current {
		have[tag.ID] = struct{}{}
		if _, ok := want[tag.ID]; !ok {
			if _, err := tx.RemoveEmailTag(ctx, emailID, tag.ID); err != nil {
				return err
			}
			removed = append(removed, tag.ID)
		}
	}
	for _, id := range uniqueIDs(tagIDs) {
		if _, ok := have[id]; ok {
			continue
		}
		if _, err := tx.AddEmailTag(ctx, emailID, id); err != nil {
			return err
		}
		added = append(added, id)
	}

	return appendLog(ctx, tx, domain.OpTagReplace, "email", emailID, domain.Metadata{
		"added":   added,
		"removed": removed,
	})
}

// ApplyTags 在一个事务中按模式修改单条记录的标签
func (s *TagService) ApplyTags(ctx context.Context, emailID int64, tagIDs []int64, mode domain.TagMode) error {
	if !mode.Valid() {
		return domain.NewValidationError("mode", "unknown tag mode %q", mode)
	}
	return s.store.WithTx(ctx, func(tx storage.Store) error {
		if mode == domain.TagModeReplace {
			return replaceTags(ctx, tx, emailID, tagIDs)
		}

		if _, err := tx.GetEmail(ctx, emailID); err != nil {
			return err
		}
		changed := 0
		for _, tagID := range uniqueIDs(tagIDs) {
			var (
				ok  bool
				err error
			)
			if mode == domain.TagModeAdd {
				ok, err = tx.AddEmailTag(ctx, emailID, tagID)
			} else {
				ok, err = tx.RemoveEmailTag(ctx, emailID, tagID)
			}
			if err != nil {
				return err
			}
			if ok {
				changed++
			}
		}
		if changed == 0 {
			return nil
		}
		op := domain.OpTagAttach
		if mode == domain.TagModeRemove {
			op = domain.OpTagDetach
		}
		return appendLog(ctx, tx, op, "email", emailID, domain.Metadata{"tagIds": tagIDs, "changed": changed})
	})
}

// BatchAddTags 逐个为邮箱添加标签，单个失败不影响其他
func (s *TagService) BatchAddTags(ctx context.Context, emailID int64, tagIDs []int64) (*domain.TagBatchResult, error) {
	return s.batchLink(ctx, emailID, tagIDs, s.AddTag)
}

// BatchRemoveTags 逐个移除邮箱的标签，单个失败不影响其他
func (s *TagService) BatchRemoveTags(ctx context.Context, emailID int64, tagIDs []int64) (*domain.TagBatchResult, error) {
	return s.batchLink(ctx, emailID, tagIDs, s.RemoveTag)
}

func (s *TagService) batchLink(ctx context.Context, emailID int64, tagIDs []int64, op func(context.Context, int64, int64) (bool, error)) (*domain.TagBatchResult, error) {
	if _, err := s.store.GetEmail(ctx, emailID); err != nil {
		return nil, err
	}

	result := &domain.TagBatchResult{Total: len(tagIDs), Errors: []string{}}
	for _, tagID := range tagIDs {
		if _, err := op(ctx, emailID, tagID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("tag %d: %v", tagID, err))
			continue
		}
		result.Success++
	}
	return result, nil
}

// MergeTags 将源标签的关联并入目标标签
//
// 目标上已存在的关联会被跳过；DeleteSource 为 true 时物理删除源标签。
// 合并到自身返回 ConflictError，删除系统标签需要 Force。
func (s *TagService) MergeTags(ctx context.Context, input MergeTagsInput) (*domain.MergeResult, error) {
	if input.SourceID == input.TargetID {
		return nil, domain.NewConflictError("tag", "cannot merge tag %d into itself", input.SourceID)
	}

	result := &domain.MergeResult{SourceID: input.SourceID, TargetID: input.TargetID}
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		source, err := tx.GetTag(ctx, input.SourceID)
		if err != nil {
			return err
		}
		if _, err := tx.GetTag(ctx, input.TargetID); err != nil {
			return err
		}
		if input.DeleteSource && source.IsSystem && !input.Force {
			return domain.NewValidationError("sourceId", "system tag %q cannot be deleted without force", source.Name)
		}

		emailIDs, err := tx.ListEmailIDsByTag(ctx, input.SourceID)
		if err != nil {
			return err
		}
		for _, emailID := range emailIDs {
			added, err := tx.AddEmailTag(ctx, emailID, input.TargetID)
			if err != nil {
				return err
			}
			if added {
				result.Moved++
			} else {
				result.Skipped++
			}
			if _, err := tx.RemoveEmailTag(ctx, emailID, input.SourceID); err != nil {
				return err
			}
		}

		if input.DeleteSource {
			if err := tx.DeleteTag(ctx, input.SourceID); err != nil {
				return err
			}
			result.SourceDeleted = true
		}

		return appendLog(ctx, tx, domain.OpTagMerge, "tag", input.TargetID, domain.Metadata{
			"sourceId":      input.SourceID,
			"moved":         result.Moved,
			"skipped":       result.Skipped,
			"sourceDeleted": result.SourceDeleted,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTagOperation("merge")
	s.logger.Info("tags merged",
		zap.Int64("source", input.SourceID),
		zap.Int64("target", input.TargetID),
		zap.Int("moved", result.Moved),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// UsageDetails 标签使用详情
func (s *TagService) UsageDetails(ctx context.Context, tagID int64) (*domain.TagUsage, error) {
	return s.store.TagUsage(ctx, tagID)
}

// GetEmailTags 获取邮箱的全部标签
func (s *TagService) GetEmailTags(ctx context.Context, emailID int64) ([]domain.Tag, error) {
	if _, err := s.store.GetEmail(ctx, emailID); err != nil {
		return nil, err
	}
	return s.store.GetEmailTags(ctx, emailID)
}
