package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/smartport-kiosk/smartport/internal/db"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf(
		"file:db_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		strings.ReplaceAll(t.Name(), "/", "_"),
	)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ── Dialect ──────────────────────────────────────────────────────────────────

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?"
	if got := db.SQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2"
	if got := db.Postgres.Rebind(q); got != want {
		t.Errorf("postgres rebind:\n got %q\nwant %q", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]db.Dialect{"": db.SQLite, "sqlite3": db.SQLite, "PostgreSQL": db.Postgres} {
		got, err := db.ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := db.ParseDialect("mysql"); err == nil {
		t.Error("expected error for mysql")
	}
}

// ── Migrations ───────────────────────────────────────────────────────────────

func TestMigrate_IdempotentAndSeed(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := db.Migrate(ctx, conn, db.SQLite); err != nil {
			t.Fatalf("Migrate #%d: %v", i, err)
		}
	}
	v, err := db.SchemaVersion(ctx, conn, db.SQLite)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
	}

	for i := 0; i < 2; i++ {
		if err := db.SeedDev(ctx, conn, db.SQLite, db.SeedDevOptions{AdminTag: "deadbeef"}); err != nil {
			t.Fatalf("SeedDev #%d: %v", i, err)
		}
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM admins WHERE tag_code = 'DEADBEEF'`).Scan(&n); err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 seeded admin, got %d", n)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx, conn, db.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO admins(tag_code, name, created_at_ms) VALUES ('A', 'X', 0)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := conn.Exec(`INSERT INTO admins(tag_code, name, created_at_ms) VALUES ('A', 'Y', 0)`)
	if !db.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
	if db.IsUniqueViolation(errors.New("other")) {
		t.Error("plain error classified as unique violation")
	}
}

// ── Worker ───────────────────────────────────────────────────────────────────

func TestWorker_RollbackOnErrorAndPanic(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx, conn, db.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	insert := func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO admins(tag_code, name, created_at_ms) VALUES ('B', 'X', 0)`)
		return err
	}

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insert(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_ = insert(ctx, tx)
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic converted to error, got %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected both transactions rolled back, got %d rows", n)
	}

	// Worker still serves jobs after a panic.
	if err := w.Do(ctx, insert); err != nil {
		t.Fatalf("insert after panic: %v", err)
	}
}
