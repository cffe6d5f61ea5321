package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// AdminTag, when set, gets a "DEV ADMIN" administrator so the admin
	// panel can be reached on a fresh database.
	AdminTag string
}

// SeedDev inserts a starter flight and, optionally, a dev administrator.
// Safe to run repeatedly.
func SeedDev(ctx context.Context, db *sql.DB, d Dialect, opt SeedDevOptions) error {
	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	departure := now.Add(6 * time.Hour).UnixMilli()

	if _, err := db.ExecContext(ctx, d.Rebind(`
INSERT INTO flights(number, destination, departure_at_ms, gate)
VALUES ('AA123', 'MADRID', ?, 'A1')
ON CONFLICT(number) DO NOTHING;`), departure); err != nil {
		return fmt.Errorf("seed flights: %w", err)
	}

	tag := strings.ToUpper(strings.TrimSpace(opt.AdminTag))
	if tag == "" {
		return nil
	}
	if _, err := db.ExecContext(ctx, d.Rebind(`
INSERT INTO admins(tag_code, name, created_at_ms)
VALUES (?, 'DEV ADMIN', ?)
ON CONFLICT(tag_code) DO NOTHING;`), tag, nowMs); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	return nil
}
