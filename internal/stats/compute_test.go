package stats

import (
	"testing"
	"time"

	"order-crm/internal/models"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time {
	return testNow.Add(-d)
}

func statOrder(created time.Time, data map[string]any) models.Order {
	return models.Order{Data: data, CreatedAt: created}
}

func TestCompute(t *testing.T) {
	defs := []models.FieldDefinition{
		{FieldName: "customer_name", FieldLabel: "客户名称", FieldType: models.FieldTypeText},
		{FieldName: "product_name", FieldLabel: "产品名称", FieldType: models.FieldTypeText},
		{FieldName: "quantity", FieldLabel: "数量", FieldType: models.FieldTypeNumber},
		{FieldName: "price", FieldLabel: "单价", FieldType: models.FieldTypeCurrency},
		{FieldName: "total_amount", FieldLabel: "总金额", FieldType: models.FieldTypeFormula, Options: []string{"price * quantity"}},
	}
	orders := []models.Order{
		statOrder(at(time.Hour), map[string]any{"shop_name": "S1", "product_name": "Mug", "price": 10.0, "quantity": 3.0, "order_status": "已发货"}),
		statOrder(at(26*time.Hour), map[string]any{"shop_name": "S1", "product_name": "Mug", "price": "5", "quantity": 0.0}),
		statOrder(at(5*24*time.Hour), map[string]any{"shop_name": "S2", "product_name": " ", "amount": "7.5", "order_status": "异常件"}),
		statOrder(at(40*24*time.Hour), map[string]any{"order_status": "已处理"}),
	}

	got := Compute(orders, defs, testNow)

	assert.Equal(t, 4, got.TotalOrders)
	assert.Equal(t, 1, got.TodayOrders)
	assert.Equal(t, 1, got.YesterdayOrders)
	assert.Equal(t, 3, got.WeekOrders)
	assert.Equal(t, 3, got.MonthOrders)
	assert.Equal(t, 2, got.UnshippedOrders)
	assert.Equal(t, 1, got.ExceptionOrders)

	// 30 from the formula, 5 from price (formula yields zero), 7.5 from amount.
	assert.Equal(t, "42.50", got.TotalRevenue)
	assert.Equal(t, "42.50", got.MonthRevenue)
	assert.Equal(t, "10.63", got.AvgOrderValue)

	assert.Equal(t, map[string]int{"已发货": 1, "--": 1, "异常件": 1, "已处理": 1}, got.StatusDistribution)
	assert.Equal(t, map[string]int{"S1": 2, "S2": 1, "未知店铺": 1}, got.ShopDistribution)
	assert.Equal(t, map[string]int{"Mug": 2, "未设置": 2}, got.ProductDistribution)
}

func TestCompute_Empty(t *testing.T) {
	got := Compute(nil, nil, testNow)
	assert.Equal(t, Empty(), got)
	assert.Equal(t, "0.00", got.AvgOrderValue)
}

func TestProductField(t *testing.T) {
	assert.Equal(t, "product", ProductField(nil))
	assert.Equal(t, "goods", ProductField([]models.FieldDefinition{
		{FieldName: "product_cost", FieldLabel: "产品成本"},
		{FieldName: "contact_name", FieldLabel: "联系人"},
		{FieldName: "item", FieldLabel: "产品"},
		{FieldName: "goods", FieldLabel: "商品名称"},
	}))
}
