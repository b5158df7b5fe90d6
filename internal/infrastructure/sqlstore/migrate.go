package sqlstore

import (
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// RunMigrations runs all pending goose migrations for the connection's dialect.
func RunMigrations(db *sqlx.DB) error {
	dir, err := setup(db)
	if err != nil {
		return err
	}
	return goose.Up(db.DB, dir)
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error {
	dir, err := setup(db)
	if err != nil {
		return err
	}
	return goose.Down(db.DB, dir)
}

func setup(db *sqlx.DB) (string, error) {
	goose.SetBaseFS(embedMigrations)
	if db.DriverName() == "pgx" {
		return "migrations/postgres", goose.SetDialect("postgres")
	}
	return "migrations/sqlite", goose.SetDialect("sqlite3")
}
