package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func (s *Store) CreateAdmin(ctx context.Context, name, tag string) (types.Admin, error) {
	nowMs := s.now().UnixMilli()
	a := types.Admin{
		TagCode:   tag,
		Name:      types.NormalizeName(name),
		CreatedAt: msToTime(nowMs),
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(`
INSERT INTO admins(tag_code, name, created_at_ms)
VALUES (?, ?, ?)
RETURNING id;`), a.TagCode, a.Name, nowMs).Scan(&a.ID)
		if dbpkg.IsUniqueViolation(err) {
			return store.ErrTagInUse
		}
		if err != nil {
			return fmt.Errorf("CreateAdmin insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Admin{}, err
	}
	return a, nil
}

func (s *Store) FindAdminByTag(ctx context.Context, tag string) (types.Admin, error) {
	var (
		a         types.Admin
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
SELECT id, tag_code, name, created_at_ms FROM admins WHERE tag_code = ?;`), tag,
	).Scan(&a.ID, &a.TagCode, &a.Name, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Admin{}, store.ErrNotFound
	}
	if err != nil {
		return types.Admin{}, fmt.Errorf("FindAdminByTag: %w", err)
	}
	a.CreatedAt = msToTime(createdMs)
	return a, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]types.Admin, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, tag_code, name, created_at_ms FROM admins ORDER BY created_at_ms DESC, id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("ListAdmins: %w", err)
	}
	defer rows.Close()

	var out []types.Admin
	for rows.Next() {
		var (
			a         types.Admin
			createdMs int64
		)
		if err := rows.Scan(&a.ID, &a.TagCode, &a.Name, &createdMs); err != nil {
			return nil, fmt.Errorf("ListAdmins scan: %w", err)
		}
		a.CreatedAt = msToTime(createdMs)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAdmins rows: %w", err)
	}
	return out, nil
}
