package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/config"
	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/monitoring"
	"aliasbox/backend/internal/storage"
)

// BatchService 批量操作服务
//
// 逐项顺序执行，每一项一个事务，单项失败不影响其他项。
type BatchService struct {
	store    storage.Store
	emails   *EmailService
	tags     *TagService
	domains  DomainSource
	maxItems int
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatchService 创建批量操作服务
func NewBatchService(store storage.Store, emails *EmailService, tags *TagService, domains DomainSource, cfg config.BatchConfig, metrics *monitoring.Metrics, logger *zap.Logger) *BatchService {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &BatchService{
		store:    store,
		emails:   emails,
		tags:     tags,
		domains:  domains,
		maxItems: maxItems,
		metrics:  metrics,
		logger:   orNop(logger).Named("batch"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BatchCreateInput 批量创建输入
type BatchCreateInput struct {
	NamingOptions
	Count     int                `json:"count"`
	Domain    string             `json:"domain"` // 为空时使用第一个已配置域名
	Suffix    string             `json:"suffix"`
	Status    domain.EmailStatus `json:"status"`
	Notes     string             `json:"notes"`
	CreatedBy string             `json:"createdBy"`
	TagNames  []string           `json:"tags"`
}

func (s *BatchService) checkSize(n int) error {
	if n <= 0 {
		return domain.NewValidationError("items", "batch is empty")
	}
	if n > s.maxItems {
		return domain.NewValidationError("items", "batch of %d exceeds the limit of %d", n, s.maxItems)
	}
	return nil
}

// finish 记录批量操作汇总（日志、指标、操作日志）
func (s *BatchService) finish(ctx context.Context, operation string, result *domain.BatchResult, started time.Time) {
	elapsed := time.Since(started)
	s.metrics.RecordBatch(operation, result.Success, result.Failed, result.Skipped, elapsed)

	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		return tx.AppendOperationLog(ctx, &domain.OperationLog{
			Operation:  domain.OpBatch,
			TargetType: operation,
			Details: domain.Metadata{
				"total":   result.Total,
				"success": result.Success,
				"failed":  result.Failed,
				"skipped": result.Skipped,
				"updated": result.Updated,
			},
			Success:   result.Failed == 0,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		s.logger.Warn("failed to record batch summary", zap.String("operation", operation), zap.Error(err))
	}

	s.logger.Info("batch finished",
		zap.String("operation", operation),
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", elapsed),
	)
}

// BatchCreate 按命名策略批量创建记录
//
// 参数:
//   - input: 批量创建输入，custom 策略下数量由 CustomNames 决定
//
// 返回值:
//   - *domain.BatchResult: 逐项结果，Emails 为创建成功的记录
//   - error: 输入整体不合法时返回错误，单项失败记入结果
func (s *BatchService) BatchCreate(ctx context.Context, input BatchCreateInput) (*domain.BatchResult, error) {
	started := time.Now()

	host := strings.ToLower(strings.TrimSpace(input.Domain))
	if host == "" {
		configured, err := s.domains.Domains(ctx)
		if err != nil {
			return nil, err
		}
		if len(configured) == 0 {
			return nil, domain.NewValidationError("domain", "no domains configured")
		}
		host = configured[0]
	}

	// 生成名字之前先限制数量，custom 策略的数量由名字列表决定
	if input.Strategy != domain.NamingCustom {
		if err := s.checkSize(input.Count); err != nil {
			return nil, err
		}
	}
	locals, err := generateLocalParts(input.NamingOptions, input.Count, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(len(locals)); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	result := domain.NewBatchResult(len(locals))
	var tagIDs []int64
	if len(input.TagNames) > 0 {
		tags, err := s.tags.EnsureTags(ctx, input.TagNames)
		if err != nil {
			return nil, err
		}
		result.Tags = tags
		for _, tag := range tags {
			tagIDs = append(tagIDs, tag.ID)
		}
	}

	for _, local := range locals {
		item := CreateEmailInput{
			Domain:    host,
			Suffix:    input.Suffix,
			Status:    input.Status,
			Notes:     input.Notes,
			CreatedBy: input.CreatedBy,
			TagIDs:    tagIDs,
		}
		label := local + input.Suffix + "@" + host
		if strings.Contains(local, "@") {
			item.Address = local
			label = local
		} else {
			item.Prefix = local
		}

		email, err := s.emails.Create(ctx, item)
		if err != nil {
			result.Fail(fmt.Sprintf("%s: %v", label, err))
			continue
		}
		result.Success++
		result.Emails = append(result.Emails, *email)
	}

	s.finish(ctx, "create", result, started)
	return result, nil
}

// BatchUpdate 批量更新记录，不存在的 ID 记为失败
func (s *BatchService) BatchUpdate(ctx context.Context, ids []int64, input UpdateEmailInput) (*domain.BatchResult, error) {
	if input.Address != nil {
		return nil, domain.NewValidationError("email", "address is immutable")
	}
	return s.each(ctx, "update", ids, func(ctx context.Context, id int64) error {
		_, err := s.emails.Update(ctx, id, input)
		return err
	})
}

// BatchDelete 批量删除记录，hard 为 true 时物理删除
func (s *BatchService) BatchDelete(ctx context.Context, ids []int64, hard bool) (*domain.BatchResult, error) {
	operation := "delete"
	if hard {
		operation = "hard_delete"
	}
	return s.each(ctx, operation, ids, func(ctx context.Context, id int64) error {
		if hard {
			return s.emails.HardDelete(ctx, id)
		}
		return s.emails.SoftDelete(ctx, id)
	})
}

// BatchApplyTags 批量修改记录的标签
//
// add 和 replace 模式下不存在的标签会自动创建；remove 模式忽略不存在的标签。
func (s *BatchService) BatchApplyTags(ctx context.Context, ids []int64, tagNames []string, mode domain.TagMode) (*domain.BatchResult, error) {
	if !mode.Valid() {
		return nil, domain.NewValidationError("mode", "unknown tag mode %q", mode)
	}
	names := normalizeTagNames(tagNames)
	if len(names) == 0 && mode != domain.TagModeReplace {
		return nil, domain.NewValidationError("tags", "at least one tag is required")
	}
	if err := s.checkSize(len(ids)); err != nil {
		return nil, err
	}

	var (
		tags []domain.Tag
		err  error
	)
	if mode == domain.TagModeRemove {
		tags, _, err = lookupTags(ctx, s.store, names)
	} else {
		tags, err = s.tags.EnsureTags(ctx, names)
	}
	if err != nil {
		return nil, err
	}
	tagIDs := make([]int64, 0, len(tags))
	for _, tag := range tags {
		tagIDs = append(tagIDs, tag.ID)
	}

	result, err := s.each(ctx, "tags_"+string(mode), ids, func(ctx context.Context, id int64) error {
		return s.tags.ApplyTags(ctx, id, tagIDs, mode)
	})
	if err != nil {
		return nil, err
	}
	result.Tags = tags
	return result, nil
}

// each 逐个执行并汇总结果
//
// 开始执行后不再响应 ctx 取消，保证每一项都有结果且汇总日志一定写入。
func (s *BatchService) each(ctx context.Context, operation string, ids []int64, fn func(ctx context.Context, id int64) error) (*domain.BatchResult, error) {
	if err := s.checkSize(len(ids)); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	result := domain.NewBatchResult(len(ids))
	for _, id := range ids {
		if err := fn(ctx, id); err != nil {
			result.Fail(fmt.Sprintf("id %d: %v", id, err))
			continue
		}
		result.Success++
	}

	s.finish(ctx, operation, result, started)
	return result, nil
}

// importRow 解析后的导入行
type importRow struct {
	address    string
	host       string
	prefix     *string
	suffix     *string
	status     *domain.EmailStatus
	notes      *string
	metadata   domain.Metadata
	createdBy  *string
	createdAt  *time.Time
	lastUsedAt *time.Time
	isActive   *bool
	tags       []string
	hasTags    bool
}

// BatchImport 导入记录
//
// 参数:
//   - rows: 每行一个字段映射，字段名与导出一致（email、status、notes、metadata、tags 等）
//   - strategy: 地址已存在时的处理方式
//     skip: 保留已有记录，计入 skipped
//     update: 用导入值覆盖已有记录，计入 success 和 updated
//     error: 当前行计为失败，剩余行不再处理并计入 skipped，已导入的行保留
//
// 开始导入后不再响应 ctx 取消。
//
// 返回值:
//   - *domain.BatchResult: 导入结果
//   - error: 策略不合法或行数超限时返回错误
func (s *BatchService) BatchImport(ctx context.Context, rows []map[string]any, strategy domain.ConflictStrategy) (*domain.BatchResult, error) {
	if strategy == "" {
		strategy = domain.ConflictSkip
	}
	if !strategy.Valid() {
		return nil, domain.NewValidationError("strategy", "unknown conflict strategy %q", strategy)
	}
	if err := s.checkSize(len(rows)); err != nil {
		return nil, err
	}
	started := time.Now()
	ctx = context.WithoutCancel(ctx)

	result := domain.NewBatchResult(len(rows))
	for i, raw := range rows {
		line := i + 1

		row, err := parseImportRow(raw)
		if err != nil {
			result.Fail(fmt.Sprintf("row %d: %v", line, err))
			continue
		}

		existing, err := s.store.GetEmailByAddress(ctx, row.address)
		if err != nil && !domain.IsNotFound(err) {
			result.Fail(fmt.Sprintf("row %d: %v", line, err))
			continue
		}

		if existing != nil {
			switch strategy {
			case domain.ConflictSkip:
				result.Skipped++
				continue
			case domain.ConflictAbort:
				result.Fail(fmt.Sprintf("row %d: %s already exists", line, row.address))
				result.Skipped += len(rows) - line
				s.finish(ctx, "import", result, started)
				return result, nil
			}

			if err := s.importUpdate(ctx, existing.ID, row); err != nil {
				result.Fail(fmt.Sprintf("row %d: %v", line, err))
				continue
			}
			result.Success++
			result.Updated++
			continue
		}

		email, err := s.importCreate(ctx, row)
		if err != nil {
			result.Fail(fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		result.Success++
		result.Emails = append(result.Emails, *email)
	}

	s.finish(ctx, "import", result, started)
	return result, nil
}

func (s *BatchService) importCreate(ctx context.Context, row *importRow) (*domain.Email, error) {
	input := CreateEmailInput{
		Address:    row.address,
		Domain:     row.host,
		Metadata:   row.metadata,
		CreatedAt:  row.createdAt,
		LastUsedAt: row.lastUsedAt,
	}
	if row.prefix != nil {
		input.Prefix = *row.prefix
	}
	if row.suffix != nil {
		input.Suffix = *row.suffix
	}
	if row.status != nil {
		input.Status = *row.status
	}
	if row.notes != nil {
		input.Notes = *row.notes
	}
	if row.createdBy != nil {
		input.CreatedBy = *row.createdBy
	}
	if row.isActive != nil {
		input.Deleted = !*row.isActive
	}
	if len(row.tags) > 0 {
		tags, err := s.tags.EnsureTags(ctx, row.tags)
		if err != nil {
			return nil, err
		}
		for _, tag := range tags {
			input.TagIDs = append(input.TagIDs, tag.ID)
		}
	}
	return s.emails.Create(ctx, input)
}

// importUpdate 在一个事务中用导入值覆盖已有记录
func (s *BatchService) importUpdate(ctx context.Context, id int64, row *importRow) error {
	return s.store.WithTx(ctx, func(tx storage.Store) error {
		email, err := tx.GetEmail(ctx, id)
		if err != nil {
			return err
		}
		if row.prefix != nil || row.suffix != nil {
			prefix, suffix := email.Prefix, email.Suffix
			if row.prefix != nil {
				prefix = *row.prefix
			}
			if row.suffix != nil {
				suffix = *row.suffix
			}
			local, _ := domain.SplitAddress(email.Address)
			email.Prefix, email.Suffix = splitLocalPart(local, strings.ToLower(prefix), strings.ToLower(suffix))
		}
		if row.status != nil {
			email.Status = *row.status
		}
		if row.notes != nil {
			email.Notes = *row.notes
		}
		if row.metadata != nil {
			email.Metadata = row.metadata
		}
		if row.createdBy != nil {
			email.CreatedBy = *row.createdBy
		}
		if row.lastUsedAt != nil {
			email.LastUsedAt = row.lastUsedAt
		}
		if row.isActive != nil {
			email.IsActive = *row.isActive
		}
		if err := tx.UpdateEmail(ctx, email); err != nil {
			return err
		}

		if row.hasTags {
			tags, err := ensureTags(ctx, tx, row.tags)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(tags))
			for _, tag := range tags {
				ids = append(ids, tag.ID)
			}
			if err := replaceTags(ctx, tx, id, ids); err != nil {
				return err
			}
		}
		return appendLog(ctx, tx, domain.OpEmailUpdate, "email", id, domain.Metadata{"source": "import"})
	})
}

// parseImportRow 解析一行导入数据，兼容 JSON 的原生类型和 CSV 的字符串
func parseImportRow(raw map[string]any) (*importRow, error) {
	row := &importRow{}

	address := stringField(raw, "email")
	if address == "" {
		address = stringField(raw, "address")
	}
	row.address = domain.NormalizeAddress(address)
	if row.address == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}
	if host := strings.ToLower(stringField(raw, "domain")); host != "" {
		if _, addrHost := domain.SplitAddress(row.address); addrHost != host {
			return nil, domain.NewValidationError("domain", "domain %q does not match %s", host, row.address)
		}
		row.host = host
	}
	if v, ok := raw["prefix"]; ok && v != nil {
		prefix := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		row.prefix = &prefix
	}
	if v, ok := raw["suffix"]; ok && v != nil {
		suffix := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		row.suffix = &suffix
	}

	if v, ok := raw["status"]; ok && v != nil && fmt.Sprint(v) != "" {
		status := domain.EmailStatus(strings.ToLower(fmt.Sprint(v)))
		if !status.Valid() {
			return nil, domain.NewValidationError("status", "unknown status %q", status)
		}
		row.status = &status
	}
	if v, ok := raw["notes"]; ok && v != nil {
		notes := fmt.Sprint(v)
		row.notes = &notes
	}
	if v, ok := raw["createdBy"]; ok && v != nil {
		createdBy := fmt.Sprint(v)
		row.createdBy = &createdBy
	}

	var err error
	if row.metadata, err = metadataField(raw["metadata"]); err != nil {
		return nil, err
	}
	if row.createdAt, err = timeField(raw, "createdAt"); err != nil {
		return nil, err
	}
	if row.lastUsedAt, err = timeField(raw, "lastUsedAt"); err != nil {
		return nil, err
	}
	if row.isActive, err = boolField(raw, "isActive"); err != nil {
		return nil, err
	}

	if v, ok := raw["tags"]; ok && v != nil {
		row.hasTags = true
		switch tags := v.(type) {
		case []string:
			row.tags = tags
		case []any:
			for _, t := range tags {
				row.tags = append(row.tags, fmt.Sprint(t))
			}
		default:
			row.tags = strings.Split(fmt.Sprint(tags), ";")
		}
		row.tags = normalizeTagNames(row.tags)
	}
	return row, nil
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func metadataField(v any) (domain.Metadata, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return domain.Metadata(m), nil
	case domain.Metadata:
		return m, nil
	case string:
		if strings.TrimSpace(m) == "" {
			return nil, nil
		}
		var out domain.Metadata
		if err := json.Unmarshal([]byte(m), &out); err != nil {
			return nil, domain.NewValidationError("metadata", "metadata must be a JSON object")
		}
		return out, nil
	}
	return nil, domain.NewValidationError("metadata", "metadata must be a JSON object")
}

func timeField(raw map[string]any, key string) (*time.Time, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		return &t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return nil, domain.NewValidationError(key, "invalid ISO-8601 time %q", t)
		}
		return &parsed, nil
	}
	return nil, domain.NewValidationError(key, "invalid time value")
}

func boolField(raw map[string]any, key string) (*bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case bool:
		return &b, nil
	case string:
		if strings.TrimSpace(b) == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, domain.NewValidationError(key, "invalid boolean %q", b)
		}
		return &parsed, nil
	}
	return nil, domain.NewValidationError(key, "invalid boolean value")
}
