package order_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"order-crm/internal/models"
	"order-crm/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportDefs() []models.FieldDefinition {
	return []models.FieldDefinition{
		{FieldName: "tags", FieldLabel: "Tags", FieldType: models.FieldTypeMultiselect},
		{FieldName: "due", FieldLabel: "Due", FieldType: models.FieldTypeDate},
		{FieldName: "price", FieldLabel: "Price", FieldType: models.FieldTypeCurrency},
		{FieldName: "qty", FieldLabel: "Qty", FieldType: models.FieldTypeNumber},
		{FieldName: "total", FieldLabel: "Total", FieldType: models.FieldTypeFormula, Options: []string{"price * qty"}},
		{FieldName: "note", FieldLabel: "Note", FieldType: models.FieldTypeText},
		{FieldName: "secret", FieldLabel: "Secret", FieldType: models.FieldTypeText, IsHidden: true},
	}
}

func exportOrders() []models.Order {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return []models.Order{{
		ID: 7,
		Data: map[string]any{
			"tags":   []any{"red", "blue"},
			"due":    "2024-03-05T10:00:00Z",
			"price":  "12.5",
			"qty":    2.0,
			"note":   "=HYPERLINK(\"x\")",
			"secret": "hidden",
		},
		CreatedAt: at,
		UpdatedAt: at,
		Creator:   &models.User{Username: "admin"},
	}}
}

func TestBuildExportTable(t *testing.T) {
	table := order.BuildExportTable(exportDefs(), exportOrders())
	require.Len(t, table, 2)

	header, row := table[0], table[1]
	assert.NotContains(t, header, "Secret")
	assert.Equal(t, []string{"Tags", "Due", "Price", "Qty", "Total", "Note"}, header[4:])

	assert.Equal(t, "7", row[0])
	assert.Equal(t, "admin", row[1])
	assert.Equal(t, []string{"red, blue", "2024-03-05", "¥12.50", "2", "25.00", "'=HYPERLINK(\"x\")"}, row[4:])
}

func TestWriteCSV_RoundTrips(t *testing.T) {
	table := order.BuildExportTable(exportDefs(), exportOrders())
	body, err := order.WriteCSV(table)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("\ufeff")))

	records, err := csv.NewReader(bytes.NewReader(body[len("\ufeff"):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, table, records)
}

func TestWriteXLSX(t *testing.T) {
	table := order.BuildExportTable(exportDefs(), exportOrders())
	body, err := order.WriteXLSX(table)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("订单数据")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Tags", rows[0][4])
	assert.Equal(t, "25.00", rows[1][8])
}
