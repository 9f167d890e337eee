package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"order-crm/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// ErrOrderNotFound is returned when no order has the requested id.
var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

// ListFilter narrows ListOrders. A nil filter returns every order.
type ListFilter struct {
	Shops     []string
	CreatorID int64
}

// jsonField returns the dialect's expression for a top-level string key of order_data.
func (d *DB) jsonField(key string) string {
	if d.Bun.Dialect().Name() == dialect.PG {
		return fmt.Sprintf("o.order_data->>'%s'", key)
	}
	return fmt.Sprintf("json_extract(o.order_data, '$.%s')", key)
}

// ---------------- ORDERS ----------------

// CreateOrder inserts order and fills in its generated id.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Returning("id").Exec(ctx)
	return err
}

// GetOrderByID fetches one order with its creator and last editor.
func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Creator").
		Relation("Updater").
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders in creation order. With a filter, an order is
// included when its shop is listed or it was created by CreatorID. An empty
// filter matches nothing.
func (d *DB) ListOrders(ctx context.Context, filter *ListFilter) ([]models.Order, error) {
	var orders []models.Order
	q := d.Bun.NewSelect().
		Model(&orders).
		Relation("Creator").
		Relation("Updater").
		OrderExpr("o.created_at ASC, o.id ASC")

	if filter != nil {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if len(filter.Shops) > 0 {
				q = q.WhereOr(d.jsonField(models.FieldShopName)+" IN (?)", bun.In(filter.Shops))
			}
			if filter.CreatorID > 0 {
				q = q.WhereOr("o.created_by = ?", filter.CreatorID)
			}
			if len(filter.Shops) == 0 && filter.CreatorID == 0 {
				q = q.Where("1 = 0")
			}
			return q
		})
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrdersByCreation returns bare orders ordered by creation time, ties
// broken by id.
func (d *DB) ListOrdersByCreation(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		OrderExpr("o.created_at ASC, o.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrder writes the data and editor columns.
func (d *DB) UpdateOrder(ctx context.Context, order *models.Order) error {
	res, err := d.Bun.NewUpdate().
		Model(order).
		Column("order_data", "updated_by", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateOrderData replaces order_data only, leaving updated_at untouched.
func (d *DB) UpdateOrderData(ctx context.Context, id int64, data map[string]any) error {
	order := &models.Order{ID: id, Data: data}
	res, err := d.Bun.NewUpdate().
		Model(order).
		Column("order_data").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeleteOrder removes an order by id.
func (d *DB) DeleteOrder(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DistinctShops returns every non-empty shop name found in orders, sorted.
func (d *DB) DistinctShops(ctx context.Context) ([]string, error) {
	expr := d.jsonField(models.FieldShopName)
	var shops []string
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("DISTINCT " + expr + " AS shop_name").
		Where(expr + " IS NOT NULL").
		Where(expr + " <> ''").
		Scan(ctx, &shops)
	if err != nil {
		return nil, err
	}
	sort.Strings(shops)
	return shops, nil
}

// CountOrders returns the number of stored orders.
func (d *DB) CountOrders(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().Model((*models.Order)(nil)).Count(ctx)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
