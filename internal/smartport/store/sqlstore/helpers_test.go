package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/smartport/store/sqlstore"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. Closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Unique in-memory database per test; shared cache keeps it alive while
	// the pool holds the connection.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		strings.ReplaceAll(t.Name(), "/", "_"),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn, db.SQLite); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore returns a Store over conn with a single-writer worker and a
// 4-component embedding codec.
func newTestStore(t *testing.T, conn *sql.DB) *sqlstore.Store {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return sqlstore.New(conn, w, db.SQLite,
		sqlstore.WithCodec(types.EmbeddingCodec{Dim: 4, Width: types.Float64}),
		sqlstore.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
}

var testEmbedding = types.Embedding{0.1, 0.2, 0.3, 0.4}

// seedValidated creates a passenger with tag and embedding enrolled.
func seedValidated(t *testing.T, s *sqlstore.Store, name, tag string) types.Passenger {
	t.Helper()
	ctx := context.Background()

	p, err := s.CreatePassenger(ctx, name, "AA123")
	if err != nil {
		t.Fatalf("seedValidated: CreatePassenger: %v", err)
	}
	if err := s.SetPassengerTag(ctx, p.ID, tag); err != nil {
		t.Fatalf("seedValidated: SetPassengerTag: %v", err)
	}
	if err := s.SetPassengerEmbedding(ctx, p.ID, testEmbedding); err != nil {
		t.Fatalf("seedValidated: SetPassengerEmbedding: %v", err)
	}
	return p
}
