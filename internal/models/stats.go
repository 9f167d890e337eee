package models

// DashboardStats is the aggregate shown on the dashboard.
type DashboardStats struct {
	TotalOrders         int            `json:"total_orders"`
	TodayOrders         int            `json:"today_orders"`
	YesterdayOrders     int            `json:"yesterday_orders"`
	WeekOrders          int            `json:"week_orders"`
	MonthOrders         int            `json:"month_orders"`
	UnshippedOrders     int            `json:"unshipped_orders"`
	ExceptionOrders     int            `json:"exception_orders"`
	TotalRevenue        string         `json:"total_revenue"`
	MonthRevenue        string         `json:"month_revenue"`
	AvgOrderValue       string         `json:"avg_order_value"`
	StatusDistribution  map[string]int `json:"status_distribution"`
	ShopDistribution    map[string]int `json:"shop_distribution"`
	ProductDistribution map[string]int `json:"product_distribution"`
}
