package sqlstore

import (
	"context"
	"database/sql"
	"time"

	dbpkg "github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// Store is the SQL IdentityStore. Reads go straight to the pool; every
// write runs through the Runner (the single-writer Worker on SQLite).
type Store struct {
	db      *sql.DB
	writer  dbpkg.Runner
	dialect dbpkg.Dialect
	codec   types.EmbeddingCodec
	now     func() time.Time
}

var (
	_ store.IdentityStore = (*Store)(nil)
	_ store.Pinger        = (*Store)(nil)
)

type Option func(*Store)

func WithCodec(c types.EmbeddingCodec) Option {
	return func(s *Store) { s.codec = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *sql.DB, writer dbpkg.Runner, dialect dbpkg.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		writer:  writer,
		dialect: dialect,
		codec:   types.DefaultEmbeddingCodec(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMsToTime(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := msToTime(ms.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}
