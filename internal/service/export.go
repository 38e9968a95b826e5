package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"aliasbox/backend/internal/domain"
	"aliasbox/backend/internal/export"
	"aliasbox/backend/internal/monitoring"
)

// ExportTemplate 导出模板
type ExportTemplate string

const (
	TemplateSimple   ExportTemplate = "simple"   // 地址、状态、创建时间的 CSV
	TemplateDetailed ExportTemplate = "detailed" // 全字段 JSON
	TemplateReport   ExportTemplate = "report"   // 文本报告
)

var simpleFields = []string{"email", "domain", "status", "createdAt"}

// ExportOptions 高级导出参数
type ExportOptions struct {
	Format          export.Format        `json:"format"`
	Filters         domain.SearchFilters `json:"filters"`
	Fields          []string             `json:"fields"`
	IncludeTags     bool                 `json:"includeTags"`
	IncludeMetadata bool                 `json:"includeMetadata"`
}

// ExportService 导出服务
type ExportService struct {
	search  *SearchService
	tags    *TagService
	configs *ConfigService
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService 创建导出服务，configs 可为 nil（不支持配置导出）
func NewExportService(search *SearchService, tags *TagService, configs *ConfigService, metrics *monitoring.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		search:  search,
		tags:    tags,
		configs: configs,
		metrics: metrics,
		logger:  orNop(logger).Named("export"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ExportAll 导出全部记录
//
// JSON 输出为记录对象数组，可直接用于导入；CSV 和 XLSX 输出全部字段。
func (s *ExportService) ExportAll(ctx context.Context, format export.Format, includeDeleted bool) ([]byte, error) {
	format, err := export.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	emails, err := s.search.All(ctx, domain.SearchFilters{IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, err
	}

	var data []byte
	if format == export.FormatJSON {
		data, err = export.EncodeJSON(export.EmailProjection(emails, nil))
	} else {
		data, err = export.EncodeTable(format, export.EmailTable(emails, nil))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", format, err)
	}

	s.metrics.RecordExport(string(format))
	s.logger.Info("emails exported",
		zap.String("format", string(format)),
		zap.Int("count", len(emails)),
		zap.Bool("include_deleted", includeDeleted),
	)
	return data, nil
}

// ExportWithTemplate 按模板导出过滤后的记录
func (s *ExportService) ExportWithTemplate(ctx context.Context, template ExportTemplate, filters domain.SearchFilters) (string, error) {
	switch template {
	case TemplateSimple, TemplateDetailed, TemplateReport:
	default:
		return "", domain.NewValidationError("template", "unknown template %q", template)
	}

	emails, err := s.search.All(ctx, filters)
	if err != nil {
		return "", err
	}

	var out string
	switch template {
	case TemplateSimple:
		data, err := export.EncodeCSV(export.EmailTable(emails, simpleFields))
		if err != nil {
			return "", err
		}
		out = string(data)
	case TemplateDetailed:
		data, err := export.EncodeJSON(export.EmailProjection(emails, nil))
		if err != nil {
			return "", err
		}
		out = string(data)
	case TemplateReport:
		out = s.report(emails)
	}

	s.metrics.RecordExport("template_" + string(template))
	return out, nil
}

// report 生成文本报告：汇总计数后逐条列出
func (s *ExportService) report(emails []domain.Email) string {
	byStatus := map[domain.EmailStatus]int{}
	byDomain := map[string]int{}
	for _, e := range emails {
		byStatus[e.Status]++
		byDomain[e.Domain]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", s.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total: %d\n\n", len(emails))

	fmt.Fprintf(&b, "By status:\n")
	for _, st := range []domain.EmailStatus{domain.EmailStatusActive, domain.EmailStatusInactive, domain.EmailStatusArchived} {
		fmt.Fprintf(&b, "  %-10s %d\n", st, byStatus[st])
	}

	fmt.Fprintf(&b, "\nBy domain:\n")
	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		fmt.Fprintf(&b, "  %-30s %d\n", d, byDomain[d])
	}

	fmt.Fprintf(&b, "\nEmails:\n")
	for _, e := range emails {
		line := fmt.Sprintf("  %s [%s] created %s", e.Address, e.Status, e.CreatedAt.UTC().Format("2006-01-02"))
		if len(e.Tags) > 0 {
			line += " tags=" + strings.Join(e.Tags, export.TagSeparator)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// ExportAdvanced 按字段选择导出过滤后的记录
//
// Fields 为空时使用全部字段；IncludeTags/IncludeMetadata 为 false 时
// 即使字段列表包含 tags/metadata 也会去掉。
func (s *ExportService) ExportAdvanced(ctx context.Context, opts ExportOptions) ([]byte, error) {
	format, err := export.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	if err := export.ValidateFields(opts.Fields); err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = export.EmailFields
	}
	selected := make([]string, 0, len(fields))
	for _, f := range fields {
		if (f == "tags" && !opts.IncludeTags) || (f == "metadata" && !opts.IncludeMetadata) {
			continue
		}
		selected = append(selected, f)
	}
	if len(selected) == 0 {
		return nil, domain.NewValidationError("fields", "no fields selected")
	}

	emails, err := s.search.All(ctx, opts.Filters)
	if err != nil {
		return nil, err
	}

	var data []byte
	if format == export.FormatJSON {
		data, err = export.EncodeJSON(export.EmailProjection(emails, selected))
	} else {
		data, err = export.EncodeTable(format, export.EmailTable(emails, selected))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", format, err)
	}

	s.metrics.RecordExport(string(format))
	s.logger.Info("emails exported",
		zap.String("format", string(format)),
		zap.Int("count", len(emails)),
		zap.Strings("fields", selected),
	)
	return data, nil
}

// ExportTags 导出全部标签（包括已停用的）及使用次数
func (s *ExportService) ExportTags(ctx context.Context, format export.Format) ([]byte, error) {
	format, err := export.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.ListTags(ctx, true)
	if err != nil {
		return nil, err
	}

	var data []byte
	if format == export.FormatJSON {
		data, err = export.EncodeJSON(tags)
	} else {
		data, err = export.EncodeTable(format, export.TagTable(tags))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", format, err)
	}
	s.metrics.RecordExport("tags_" + string(format))
	return data, nil
}

// ExportConfig 导出有效配置项（JSON）
func (s *ExportService) ExportConfig(ctx context.Context) ([]byte, error) {
	if s.configs == nil {
		return nil, domain.NewValidationError("config", "config export unavailable")
	}
	items, err := s.configs.ExportEntries(ctx)
	if err != nil {
		return nil, err
	}
	data, err := export.EncodeJSON(map[string]any{
		"exportedAt": s.now().Format(time.RFC3339),
		"entries":    items,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordExport("config")
	return data, nil
}
