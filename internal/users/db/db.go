package db

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"order-crm/internal/models"

	"github.com/uptrace/bun"
)

var ErrUserNotFound = errors.New("user not found")

type DB struct {
	Bun *bun.DB
}

// ListUsers returns every account, newest first, with shop grants attached.
func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := d.Bun.NewSelect().Model(&users).OrderExpr("u.created_at DESC, u.id DESC").Scan(ctx); err != nil {
		return nil, err
	}

	var grants []models.UserShopPermission
	if err := d.Bun.NewSelect().Model(&grants).OrderExpr("usp.shop_name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	byUser := make(map[int64][]string)
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g.ShopName)
	}
	for i := range users {
		users[i].ShopPermissions = nonNil(byUser[users[i].ID])
	}
	return users, nil
}

func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return d.getBy(ctx, "u.id = ?", id)
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.getBy(ctx, "u.email = ?", email)
}

func (d *DB) getBy(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().Model(&user).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	shops, err := d.ShopPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.ShopPermissions = shops
	return &user, nil
}

// ExistsByUsernameOrEmail reports whether another account uses either value.
func (d *DB) ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error) {
	q := d.Bun.NewSelect().
		Model((*models.User)(nil)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("u.username = ?", username).WhereOr("u.email = ?", email)
		})
	if excludeID > 0 {
		q = q.Where("u.id <> ?", excludeID)
	}
	return q.Exists(ctx)
}

// CreateUser inserts the account and its shop grants atomically.
func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Returning("id").Exec(ctx); err != nil {
			return err
		}
		return replaceShops(ctx, tx, user.ID, user.ShopPermissions)
	})
}

// UpdateUser writes the profile and replaces the shop grants atomically.
func (d *DB) UpdateUser(ctx context.Context, user *models.User) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(user).
			ExcludeColumn("id", "created_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := expectRow(res); err != nil {
			return err
		}
		return replaceShops(ctx, tx, user.ID, user.ShopPermissions)
	})
}

// DeleteUser removes the account together with its grants.
func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.UserShopPermission)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

func (d *DB) ShopPermissions(ctx context.Context, userID int64) ([]string, error) {
	var shops []string
	err := d.Bun.NewSelect().
		Model((*models.UserShopPermission)(nil)).
		Column("shop_name").
		Where("user_id = ?", userID).
		OrderExpr("shop_name ASC").
		Scan(ctx, &shops)
	if err != nil {
		return nil, err
	}
	return nonNil(shops), nil
}

// SetShopPermissions replaces every grant of userID with shops.
func (d *DB) SetShopPermissions(ctx context.Context, userID int64, shops []string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.User)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		return replaceShops(ctx, tx, userID, shops)
	})
}

func replaceShops(ctx context.Context, tx bun.Tx, userID int64, shops []string) error {
	if _, err := tx.NewDelete().Model((*models.UserShopPermission)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
		return err
	}
	if len(shops) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.UserShopPermission, 0, len(shops))
	for _, shop := range shops {
		rows = append(rows, models.UserShopPermission{UserID: userID, ShopName: shop, CreatedAt: now})
	}
	_, err := tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nonNil(shops []string) []string {
	if shops == nil {
		return []string{}
	}
	sort.Strings(shops)
	return shops
}
