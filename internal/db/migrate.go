package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func gooseDialect(d Dialect) string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

func migrationsDir(d Dialect) string {
	return "migrations/" + string(d)
}

func prepareGoose(d Dialect) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect(d)); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}

// Migrate applies all pending migrations for the dialect.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(d); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, migrationsDir(d)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the current goose version of the database.
func SchemaVersion(ctx context.Context, db *sql.DB, d Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(d); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}
