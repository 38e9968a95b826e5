package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"aliasbox/backend/internal/domain"
)

// DecodeRows 把导出文件还原为导入行
//
// JSON 支持对象数组或带 "emails" 字段的导出包；CSV 和 XLSX 首行为表头。
// 表格中的空单元格不产生字段，导入时保持默认值。
func DecodeRows(format Format, data []byte) ([]map[string]any, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(data)
	case FormatXLSX:
		return decodeXLSX(data)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, domain.NewValidationError("data", "empty import payload")
	}

	var rows []map[string]any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, domain.NewValidationError("data", "invalid JSON: %v", err)
		}
		return rows, nil
	}

	var envelope struct {
		Emails []map[string]any `json:"emails"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, domain.NewValidationError("data", "invalid JSON: %v", err)
	}
	if envelope.Emails == nil {
		return nil, domain.NewValidationError("data", `JSON object must contain an "emails" array`)
	}
	return envelope.Emails, nil
}

func decodeCSV(data []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.NewValidationError("data", "empty CSV")
	}
	if err != nil {
		return nil, domain.NewValidationError("data", "invalid CSV: %v", err)
	}

	var records [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewValidationError("data", "invalid CSV: %v", err)
		}
		records = append(records, record)
	}
	return tableRows(header, records), nil
}

func decodeXLSX(data []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationError("data", "invalid XLSX: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("data", "XLSX has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.NewValidationError("data", "invalid XLSX: %v", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewValidationError("data", "empty XLSX")
	}
	return tableRows(rows[0], rows[1:]), nil
}

// tableRows 以表头为键组装行，去掉 UTF-8 BOM 和空白
func tableRows(header []string, records [][]string) []map[string]any {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(keys))
		for i, key := range keys {
			if key == "" || i >= len(record) || record[i] == "" {
				continue
			}
			row[key] = record[i]
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}
