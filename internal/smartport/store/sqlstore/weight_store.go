package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func (s *Store) RecordWeight(ctx context.Context, r types.WeightReading) (types.WeightReading, error) {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now()
	}
	recordedMs := r.RecordedAt.UTC().UnixMilli()
	r.RecordedAt = msToTime(recordedMs)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, s.q(`
INSERT INTO weight_readings(weight_kg, parse_error, raw_payload, recorded_at_ms)
VALUES (?, ?, ?, ?)
RETURNING id;`), r.WeightKg, boolInt(r.ParseError), r.RawPayload, recordedMs).Scan(&r.ID); err != nil {
			return fmt.Errorf("RecordWeight insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.WeightReading{}, err
	}
	return r, nil
}

func (s *Store) ListWeights(ctx context.Context, limit int) ([]types.WeightReading, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT id, weight_kg, parse_error, raw_payload, recorded_at_ms
FROM weight_readings
ORDER BY recorded_at_ms DESC, id DESC
LIMIT ?;`), limit)
	if err != nil {
		return nil, fmt.Errorf("ListWeights: %w", err)
	}
	defer rows.Close()

	var out []types.WeightReading
	for rows.Next() {
		var (
			r          types.WeightReading
			parseErr   int
			recordedMs int64
		)
		if err := rows.Scan(&r.ID, &r.WeightKg, &parseErr, &r.RawPayload, &recordedMs); err != nil {
			return nil, fmt.Errorf("ListWeights scan: %w", err)
		}
		r.ParseError = parseErr == 1
		r.RecordedAt = msToTime(recordedMs)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWeights rows: %w", err)
	}
	return out, nil
}

func (s *Store) WeightStatsSince(ctx context.Context, since time.Time, overweightKg float64) (types.WeightStats, error) {
	var (
		st          types.WeightStats
		avg, mx, mn sql.NullFloat64
		over        sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
SELECT COUNT(*), AVG(weight_kg), MAX(weight_kg), MIN(weight_kg),
       SUM(CASE WHEN weight_kg > ? THEN 1 ELSE 0 END)
FROM weight_readings
WHERE recorded_at_ms >= ?;`), overweightKg, since.UTC().UnixMilli(),
	).Scan(&st.Total, &avg, &mx, &mn, &over)
	if err != nil {
		return types.WeightStats{}, fmt.Errorf("WeightStatsSince: %w", err)
	}
	st.Average = avg.Float64
	st.Max = mx.Float64
	st.Min = mn.Float64
	st.Overweights = int(over.Int64)
	return st, nil
}

func (s *Store) PruneWeightsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`
DELETE FROM weight_readings WHERE recorded_at_ms < ?;`), cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneWeightsOlderThan delete: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("PruneWeightsOlderThan rows: %w", err)
		}
		return nil
	})
	return deleted, err
}
