package order

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"order-crm/internal/apperrors"
	"order-crm/internal/formula"
	"order-crm/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"

	defaultCurrencySymbol = "¥"
	exportSheet           = "订单数据"
)

var exportFixedHeaders = []string{"订单ID", "创建者", "创建时间", "更新时间"}

// ExportFile is a rendered export ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
	Truncated   bool
}

// Export renders the orders visible to actor with every non-hidden field.
// At most maxRows orders are written; maxRows <= 0 means no limit.
func (s *OrderService) Export(ctx context.Context, actor models.Principal, format string, maxRows int) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportXLSX
	}
	if format != ExportCSV && format != ExportXLSX {
		return nil, apperrors.NewValidationError("format", fmt.Sprintf("unsupported export format %q", format))
	}

	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	orders, err := s.DB.ListOrders(ctx, VisibilityFilter(actor))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	truncated := false
	if maxRows > 0 && len(orders) > maxRows {
		s.Logger.Warn("EXPORT", fmt.Sprintf("export limited to %d of %d orders", maxRows, len(orders)))
		orders = orders[:maxRows]
		truncated = true
	}

	table := BuildExportTable(defs, orders)
	stamp := s.now().UTC().Format("20060102-150405")

	var body []byte
	file := &ExportFile{Rows: len(orders), Truncated: truncated}
	switch format {
	case ExportCSV:
		body, err = WriteCSV(table)
		file.ContentType = "text/csv; charset=utf-8"
	default:
		body, err = WriteXLSX(table)
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	file.Body = body
	file.Filename = fmt.Sprintf("orders-%s.%s", stamp, format)

	s.Logger.Info("EXPORT", fmt.Sprintf("user %d exported %d orders as %s", actor.UserID, file.Rows, format))
	return file, nil
}

// BuildExportTable returns the header row followed by one row per order.
func BuildExportTable(defs []models.FieldDefinition, orders []models.Order) [][]string {
	visible := make([]models.FieldDefinition, 0, len(defs))
	for _, d := range defs {
		if !d.IsHidden {
			visible = append(visible, d)
		}
	}

	header := append([]string{}, exportFixedHeaders...)
	for _, d := range visible {
		header = append(header, d.FieldLabel)
	}

	eval := formula.NewEvaluator(defs)
	table := make([][]string, 0, len(orders)+1)
	table = append(table, header)
	for _, o := range orders {
		creator := ""
		if o.Creator != nil {
			creator = o.Creator.Username
		}
		row := []string{
			strconv.FormatInt(o.ID, 10),
			escapeCell(creator),
			o.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			o.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		}
		for _, d := range visible {
			row = append(row, exportValue(eval, d, o.Data))
		}
		table = append(table, row)
	}
	return table
}

func exportValue(eval *formula.Evaluator, d models.FieldDefinition, data map[string]any) string {
	value := data[d.FieldName]

	switch d.FieldType {
	case models.FieldTypeFormula:
		result, err := eval.Evaluate(d.Formula(), data)
		if err != nil {
			return ""
		}
		return formula.Format(result)
	case models.FieldTypeMultiselect:
		if list, ok := value.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, fmt.Sprint(item))
			}
			return escapeCell(strings.Join(parts, ", "))
		}
	case models.FieldTypeDate:
		if s, ok := value.(string); ok && s != "" {
			return escapeCell(formatDate(s))
		}
	case models.FieldTypeCurrency:
		if amount, ok := formula.NumericValue(value); ok {
			symbol := defaultCurrencySymbol
			if sym, ok := data[d.FieldName+"_currency"].(string); ok && sym != "" {
				symbol = sym
			}
			return escapeCell(symbol + amount.StringFixed(2))
		}
	}
	return cellText(value)
}

func cellText(value any) string {
	switch x := value.(type) {
	case nil:
		return ""
	case string:
		return escapeCell(x)
	case float64:
		return decimal.NewFromFloat(x).String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return escapeCell(fmt.Sprint(x))
	}
}

// formatDate renders a stored date as YYYY-MM-DD, leaving unparseable text as is.
func formatDate(s string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// escapeCell keeps spreadsheet applications from treating text as a formula.
func escapeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// WriteCSV renders table as UTF-8 CSV with a byte order mark so spreadsheet
// applications detect the encoding.
func WriteCSV(table [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders table as a single-sheet workbook.
func WriteXLSX(table [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, row := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
