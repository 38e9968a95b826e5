// Package export 提供邮箱记录和标签的 JSON、CSV、XLSX 编码与导入解码。
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"aliasbox/backend/internal/domain"
)

// Format 导出格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat 解析格式名（不区分大小写），空字符串视为 JSON
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", domain.NewValidationError("format", "unsupported export format %q", s)
}

// ContentType 返回格式对应的 MIME 类型
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json; charset=utf-8"
}

// Extension 返回文件扩展名
func (f Format) Extension() string {
	return "." + string(f)
}

// Table 表格数据，CSV 和 XLSX 共用
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// TagSeparator 标签在单列中的分隔符，标签名不允许包含该字符
const TagSeparator = ";"

// EmailFields 记录可导出的字段（默认顺序）
var EmailFields = []string{
	"id", "email", "domain", "prefix", "suffix", "status", "notes", "tags",
	"metadata", "isActive", "createdBy", "createdAt", "updatedAt", "lastUsedAt",
}

var emailFieldSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(EmailFields))
	for _, f := range EmailFields {
		set[f] = struct{}{}
	}
	return set
}()

// ValidateFields 校验字段名
func ValidateFields(fields []string) error {
	for _, f := range fields {
		if _, ok := emailFieldSet[f]; !ok {
			return domain.NewValidationError("fields", "unknown field %q", f)
		}
	}
	return nil
}

// formatTime 按 ISO-8601 (RFC 3339) 输出 UTC 时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// EmailValue 返回记录字段的原生值，用于 JSON 投影
func EmailValue(e domain.Email, field string) any {
	switch field {
	case "id":
		return e.ID
	case "email":
		return e.Address
	case "domain":
		return e.Domain
	case "prefix":
		return e.Prefix
	case "suffix":
		return e.Suffix
	case "status":
		return string(e.Status)
	case "notes":
		return e.Notes
	case "tags":
		if e.Tags == nil {
			return []string{}
		}
		return e.Tags
	case "metadata":
		if e.Metadata == nil {
			return domain.Metadata{}
		}
		return e.Metadata
	case "isActive":
		return e.IsActive
	case "createdBy":
		return e.CreatedBy
	case "createdAt":
		return formatTime(e.CreatedAt)
	case "updatedAt":
		return formatTime(e.UpdatedAt)
	case "lastUsedAt":
		if e.LastUsedAt == nil {
			return nil
		}
		return formatTime(*e.LastUsedAt)
	}
	return nil
}

// EmailCell 返回记录字段的单元格文本
//
// 标签以分号拼接，metadata 以 JSON 文本放在一列中。
func EmailCell(e domain.Email, field string) string {
	switch field {
	case "tags":
		return strings.Join(e.Tags, TagSeparator)
	case "metadata":
		if len(e.Metadata) == 0 {
			return ""
		}
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return ""
		}
		return string(data)
	case "isActive":
		return strconv.FormatBool(e.IsActive)
	case "id":
		return strconv.FormatInt(e.ID, 10)
	}
	v := EmailValue(e, field)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// EmailTable 构造记录表格
func EmailTable(emails []domain.Email, fields []string) Table {
	if len(fields) == 0 {
		fields = EmailFields
	}
	t := Table{Sheet: "Emails", Header: fields, Rows: make([][]string, 0, len(emails))}
	for _, e := range emails {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = EmailCell(e, f)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// EmailProjection 按字段投影记录，用于 JSON 导出
func EmailProjection(emails []domain.Email, fields []string) []map[string]any {
	if len(fields) == 0 {
		fields = EmailFields
	}
	out := make([]map[string]any, 0, len(emails))
	for _, e := range emails {
		item := make(map[string]any, len(fields))
		for _, f := range fields {
			item[f] = EmailValue(e, f)
		}
		out = append(out, item)
	}
	return out
}

// TagTable 构造标签表格
func TagTable(tags []domain.Tag) Table {
	t := Table{
		Sheet:  "Tags",
		Header: []string{"id", "name", "description", "color", "icon", "isSystem", "isActive", "usageCount", "createdAt"},
		Rows:   make([][]string, 0, len(tags)),
	}
	for _, tag := range tags {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(tag.ID, 10),
			tag.Name,
			tag.Description,
			tag.Color,
			tag.Icon,
			strconv.FormatBool(tag.IsSystem),
			strconv.FormatBool(tag.IsActive),
			strconv.Itoa(tag.UsageCount),
			formatTime(tag.CreatedAt),
		})
	}
	return t
}

// EncodeJSON 以缩进格式输出 JSON
func EncodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// EncodeCSV 输出 CSV，首行为表头
func EncodeCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeXLSX 输出单工作表的 XLSX，首行为表头
func EncodeXLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	if err := setRow(f, sheet, 1, t.Header); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// EncodeTable 按格式输出表格，JSON 输出为以表头为键的对象数组
func EncodeTable(format Format, t Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EncodeCSV(t)
	case FormatXLSX:
		return EncodeXLSX(t)
	case FormatJSON:
	default:
		return nil, domain.NewValidationError("format", "unsupported export format %q", format)
	}
	items := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		item := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				item[h] = row[i]
			}
		}
		items = append(items, item)
	}
	return EncodeJSON(items)
}
