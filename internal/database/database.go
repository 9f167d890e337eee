package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"order-crm/internal/config"
	"order-crm/internal/logger"
	"order-crm/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Models lists every table in dependency order.
var Models = []interface{}{
	(*models.User)(nil),
	(*models.UserShopPermission)(nil),
	(*models.FieldDefinition)(nil),
	(*models.Order)(nil),
}

// Open connects to the configured database, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		sqldb, err := connectWithRetry(ctx, "postgres", cfg, log)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite":
		sqldb, err := connectWithRetry(ctx, sqliteshim.ShimName, cfg, log)
		if err != nil {
			return nil, err
		}
		// SQLite serialises writers; one connection also keeps :memory: databases alive.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

var memorySeq atomic.Int64

// OpenSQLiteMemory returns a fresh, private in-memory database with the
// schema created.
func OpenSQLiteMemory(ctx context.Context) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:crm_mem_%d?mode=memory&cache=shared", memorySeq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func connectWithRetry(ctx context.Context, driver string, cfg config.DatabaseConfig, log *logger.Logger) (*sql.DB, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = sql.Open(driver, cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				log.Info("DATABASE", fmt.Sprintf("Connected to %s", cfg.Driver))
				return sqldb, nil
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
}

// CreateSchema creates missing tables from the bun models.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range Models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// DropSchema drops every table in reverse dependency order.
func DropSchema(ctx context.Context, db *bun.DB) error {
	for i := len(Models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(Models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", Models[i], err)
		}
	}
	return nil
}
