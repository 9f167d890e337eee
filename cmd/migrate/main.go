// Command migrate prepares the database schema outside the service process.
package main

import (
	"context"
	"fmt"
	"os"

	"order-crm/internal/auth"
	"order-crm/internal/config"
	"order-crm/internal/database"
	"order-crm/internal/database/migrations"
	"order-crm/internal/logger"

	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
)

func main() {
	var (
		reset = pflag.Bool("reset", false, "drop every table before migrating")
		down  = pflag.Bool("down", false, "roll back all migrations and exit")
		seed  = pflag.Bool("seed", false, "insert the default field catalog when it is empty")
		token = pflag.Bool("token", false, "print a signed token for the administrator")
	)
	pflag.Parse()

	cfg := config.Load()
	log := logger.NewWriterLogger(os.Stderr)
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if *down || *reset {
		if err := dropAll(ctx, cfg.Database.Driver, bunDB, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "Dropped all tables")
		if *down {
			return
		}
	}

	if err := migrateUp(ctx, cfg.Database.Driver, bunDB, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", "Schema is up to date")

	admin, created, err := database.EnsureAdmin(ctx, bunDB)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	if created {
		log.Info("DATABASE", fmt.Sprintf("Created administrator %q", admin.Username))
	}

	if *seed {
		n, err := database.SeedFields(ctx, bunDB, admin.ID)
		if err != nil {
			log.Fatal("DATABASE", err.Error())
		}
		log.Info("DATABASE", fmt.Sprintf("Seeded %d field definitions", n))
	}

	if *token {
		if cfg.Auth.JWTSecret == "" {
			log.Fatal("AUTH", "JWT_SECRET must be set to sign tokens")
		}
		signed, err := auth.SignToken(cfg.Auth.JWTSecret, *admin, cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		fmt.Println(signed)
	}
}

func migrateUp(ctx context.Context, driver string, bunDB *bun.DB, log *logger.Logger) error {
	if driver != "postgres" {
		return database.CreateSchema(ctx, bunDB)
	}
	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()
	return runner.MigrateUp()
}

func dropAll(ctx context.Context, driver string, bunDB *bun.DB, log *logger.Logger) error {
	if driver != "postgres" {
		return database.DropSchema(ctx, bunDB)
	}
	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()
	return runner.MigrateDown()
}
