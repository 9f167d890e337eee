package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-crm/internal/models"

	"github.com/uptrace/bun"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminEmail    = "admin@crm.com"
)

// EnsureAdmin creates the default administrator when no admin exists and
// returns the administrator account.
func EnsureAdmin(ctx context.Context, db *bun.DB) (*models.User, bool, error) {
	var admin models.User
	err := db.NewSelect().
		Model(&admin).
		Where("role = ?", models.RoleAdmin).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &admin, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("look up admin: %w", err)
	}

	now := time.Now()
	admin = models.User{
		Username:  DefaultAdminUsername,
		Email:     DefaultAdminEmail,
		Role:      models.RoleAdmin,
		Status:    models.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.NewInsert().Model(&admin).Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("create admin: %w", err)
	}
	return &admin, true, nil
}

// DefaultFields is the starter catalog inserted by the migrate tool.
func DefaultFields() []models.FieldDefinition {
	return []models.FieldDefinition{
		{FieldName: models.FieldOrderID, FieldLabel: "订单编号", FieldType: models.FieldTypeText, SortOrder: 1},
		{FieldName: models.FieldOrderType, FieldLabel: "订单类型", FieldType: models.FieldTypeSelect, Options: []string{"A", "B", "C"}, IsRequired: true, SortOrder: 2},
		{FieldName: models.FieldShopName, FieldLabel: "店铺名称", FieldType: models.FieldTypeSelect, IsRequired: true, SortOrder: 3},
		{FieldName: "product_name", FieldLabel: "产品名称", FieldType: models.FieldTypeText, SortOrder: 4},
		{FieldName: "quantity", FieldLabel: "数量", FieldType: models.FieldTypeNumber, SortOrder: 5},
		{FieldName: "price", FieldLabel: "单价", FieldType: models.FieldTypeCurrency, SortOrder: 6},
		{FieldName: "total_amount", FieldLabel: "总金额", FieldType: models.FieldTypeFormula, Options: []string{"price * quantity"}, SortOrder: 7},
		{FieldName: models.FieldOrderStatus, FieldLabel: "订单状态", FieldType: models.FieldTypeSelect, Options: []string{"--", "已处理", "已发货", "异常件"}, SortOrder: 8},
		{FieldName: "order_date", FieldLabel: "下单日期", FieldType: models.FieldTypeDate, SortOrder: 9},
	}
}

// SeedFields inserts DefaultFields when the catalog is empty.
func SeedFields(ctx context.Context, db *bun.DB, createdBy int64) (int, error) {
	count, err := db.NewSelect().Model((*models.FieldDefinition)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count fields: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now()
	fields := DefaultFields()
	for i := range fields {
		fields[i].CreatedBy = createdBy
		fields[i].CreatedAt = now
		fields[i].UpdatedAt = now
	}
	if _, err := db.NewInsert().Model(&fields).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert fields: %w", err)
	}
	return len(fields), nil
}
