package stats

import (
	"fmt"
	"strings"
	"time"

	"order-crm/internal/formula"
	"order-crm/internal/models"
	"order-crm/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	statusUnset   = "--"
	statusHandled = "已处理"
	statusFailed  = "异常件"
	unknownShop   = "未知店铺"
	unsetProduct  = "未设置"
)

// AmountFields are checked in order; the first one holding a non-zero
// number is the order's amount.
var AmountFields = []string{"amount", "total_amount", "price", "order_amount", "income", "revenue", "到账金额", "订单金额"}

// Empty returns zeroed statistics with non-nil distributions.
func Empty() models.DashboardStats {
	zero := decimal.Zero.StringFixed(2)
	return models.DashboardStats{
		TotalRevenue:        zero,
		MonthRevenue:        zero,
		AvgOrderValue:       zero,
		StatusDistribution:  map[string]int{},
		ShopDistribution:    map[string]int{},
		ProductDistribution: map[string]int{},
	}
}

// Compute aggregates orders as of now. Day and month boundaries use now's
// location.
func Compute(orders []models.Order, defs []models.FieldDefinition, now time.Time) models.DashboardStats {
	out := Empty()

	today := utils.StartOfDay(now)
	yesterday := today.AddDate(0, 0, -1)
	weekStart := today.AddDate(0, 0, -7)
	monthStart := utils.StartOfMonth(now)
	productField := ProductField(defs)
	eval := formula.NewEvaluator(defs)
	formulas := make(map[string]string)
	for _, d := range defs {
		if src := d.Formula(); src != "" {
			formulas[d.FieldName] = src
		}
	}

	total, month := decimal.Zero, decimal.Zero
	for _, o := range orders {
		created := o.CreatedAt.In(now.Location())
		out.TotalOrders++
		switch {
		case !created.Before(today):
			out.TodayOrders++
		case !created.Before(yesterday):
			out.YesterdayOrders++
		}
		if !created.Before(weekStart) {
			out.WeekOrders++
		}
		if !created.Before(monthStart) {
			out.MonthOrders++
		}

		status := text(o.Data[models.FieldOrderStatus])
		if status == "" || status == statusUnset || status == statusHandled {
			out.UnshippedOrders++
		}
		if status == statusFailed {
			out.ExceptionOrders++
		}
		if status == "" {
			status = statusUnset
		}
		out.StatusDistribution[status]++

		shop := text(o.Data[models.FieldShopName])
		if shop == "" {
			shop = unknownShop
		}
		out.ShopDistribution[shop]++

		product := strings.TrimSpace(text(o.Data[productField]))
		if product == "" {
			product = unsetProduct
		}
		out.ProductDistribution[product]++

		amount := orderAmount(o.Data, eval, formulas)
		total = total.Add(amount)
		if !created.Before(monthStart) {
			month = month.Add(amount)
		}
	}

	out.TotalRevenue = total.StringFixed(2)
	out.MonthRevenue = month.StringFixed(2)
	if out.TotalOrders > 0 {
		out.AvgOrderValue = total.Div(decimal.NewFromInt(int64(out.TotalOrders))).StringFixed(2)
	}
	return out
}

func orderAmount(data map[string]any, eval *formula.Evaluator, formulas map[string]string) decimal.Decimal {
	for _, name := range AmountFields {
		if src, ok := formulas[name]; ok {
			if v, err := eval.Evaluate(src, data); err == nil && !v.IsZero() {
				return v
			}
			continue
		}
		if v, ok := formula.NumericValue(data[name]); ok && !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

// ProductField picks the field that names the product: product-like labels
// or names, excluding cost and person fields. Falls back to "product".
func ProductField(defs []models.FieldDefinition) string {
	var candidates []models.FieldDefinition
	for _, d := range defs {
		label := strings.ToLower(d.FieldLabel)
		name := strings.ToLower(d.FieldName)

		product := strings.Contains(label, "产品") || strings.Contains(label, "商品") || strings.Contains(name, "product")
		cost := strings.Contains(label, "成本") || strings.Contains(label, "cost") || strings.Contains(label, "price")
		person := strings.Contains(label, "下单人") || strings.Contains(label, "联系人") || strings.Contains(label, "客户") ||
			strings.Contains(label, "用户") || (strings.Contains(name, "name") && !strings.Contains(name, "product"))
		if product && !cost && !person {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return "product"
	}
	for _, want := range []string{"产品名称", "商品名称", "产品"} {
		for _, d := range candidates {
			if strings.Contains(d.FieldLabel, want) {
				return d.FieldName
			}
		}
	}
	return candidates[0].FieldName
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return fmt.Sprint(x)
	}
}
