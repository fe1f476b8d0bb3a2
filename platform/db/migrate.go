// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"database/sql"
	"io/fs"

	"salesops_backend/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending migrations from the embedded filesystem.
// Uses a separate database/sql connection because goose does not speak pgxpool.
func RunMigrations(cfg config.DatabaseConfig, migrations fs.FS) error {
	sqlDB, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(sqlDB, ".")
}
