package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"order-crm/internal/models"

	"github.com/uptrace/bun"
)

var ErrFieldNotFound = errors.New("field not found")

type DB struct {
	Bun *bun.DB
}

// ListFields returns the catalog in display order.
func (d *DB) ListFields(ctx context.Context) ([]models.FieldDefinition, error) {
	var fields []models.FieldDefinition
	err := d.Bun.NewSelect().
		Model(&fields).
		OrderExpr("fd.sort_order ASC, fd.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (d *DB) GetField(ctx context.Context, id int64) (*models.FieldDefinition, error) {
	var field models.FieldDefinition
	err := d.Bun.NewSelect().Model(&field).Where("fd.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFieldNotFound
	}
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (d *DB) GetFieldByName(ctx context.Context, name string) (*models.FieldDefinition, error) {
	var field models.FieldDefinition
	err := d.Bun.NewSelect().Model(&field).Where("fd.field_name = ?", name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFieldNotFound
	}
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (d *DB) CreateField(ctx context.Context, field *models.FieldDefinition) error {
	_, err := d.Bun.NewInsert().Model(field).Returning("id").Exec(ctx)
	return err
}

// UpdateField writes every mutable column. The name is never changed.
func (d *DB) UpdateField(ctx context.Context, field *models.FieldDefinition) error {
	res, err := d.Bun.NewUpdate().
		Model(field).
		Column("field_label", "field_type", "options", "is_required", "sort_order", "is_hidden", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (d *DB) DeleteField(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.FieldDefinition)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateSortOrders applies every item or none.
func (d *DB) UpdateSortOrders(ctx context.Context, items []models.SortItem) error {
	now := time.Now().UTC()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, item := range items {
			res, err := tx.NewUpdate().
				Model((*models.FieldDefinition)(nil)).
				Set("sort_order = ?", *item.SortOrder).
				Set("updated_at = ?", now).
				Where("id = ?", item.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if err := expectRow(res); err != nil {
				return err
			}
		}
		return nil
	})
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFieldNotFound
	}
	return nil
}
