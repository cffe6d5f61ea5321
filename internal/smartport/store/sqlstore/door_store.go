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

const eventColumns = `id, passenger_id, similarity, door_actuated, created_at_ms, actuated_at_ms`

func scanEvent(row rowScanner) (types.DoorAccessEvent, error) {
	var (
		ev         types.DoorAccessEvent
		actuated   int
		createdMs  int64
		actuatedMs sql.NullInt64
	)
	if err := row.Scan(&ev.ID, &ev.PassengerID, &ev.Similarity, &actuated, &createdMs, &actuatedMs); err != nil {
		return types.DoorAccessEvent{}, err
	}
	ev.DoorActuated = actuated == 1
	ev.CreatedAt = msToTime(createdMs)
	ev.ActuatedAt = nullMsToTime(actuatedMs)
	return ev, nil
}

func (s *Store) RecordBoardingEvent(ctx context.Context, passengerID int64, similarity float64) (types.DoorAccessEvent, error) {
	nowMs := s.now().UnixMilli()
	var ev types.DoorAccessEvent

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var (
			state string
			blob  []byte
		)
		err := tx.QueryRowContext(ctx, s.q(`
SELECT state, embedding FROM passengers WHERE id = ?`+s.dialect.ForUpdate()+`;`), passengerID).Scan(&state, &blob)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("RecordBoardingEvent passenger: %w", err)
		}

		existing, err := scanEvent(tx.QueryRowContext(ctx, s.q(`
SELECT `+eventColumns+` FROM door_access_events WHERE passenger_id = ?;`), passengerID))
		if err == nil {
			ev = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("RecordBoardingEvent existing: %w", err)
		}

		st := types.PassengerState(state)
		if len(blob) == 0 || (st != types.StateRegistered && st != types.StateValidated) {
			return store.ErrInvalidState
		}

		ev = types.DoorAccessEvent{
			PassengerID: passengerID,
			Similarity:  similarity,
			CreatedAt:   msToTime(nowMs),
		}
		if err := tx.QueryRowContext(ctx, s.q(`
INSERT INTO door_access_events(passenger_id, similarity, door_actuated, created_at_ms)
VALUES (?, ?, 0, ?)
RETURNING id;`), passengerID, similarity, nowMs).Scan(&ev.ID); err != nil {
			return fmt.Errorf("RecordBoardingEvent insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.q(`
UPDATE passengers SET state = ?, updated_at_ms = ? WHERE id = ?;`),
			string(types.StateBoarded), nowMs, passengerID,
		); err != nil {
			return fmt.Errorf("RecordBoardingEvent state: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.DoorAccessEvent{}, err
	}
	return ev, nil
}

func (s *Store) FindDoorEvent(ctx context.Context, passengerID int64) (types.DoorAccessEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, s.q(`
SELECT `+eventColumns+` FROM door_access_events WHERE passenger_id = ?;`), passengerID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DoorAccessEvent{}, store.ErrNotFound
	}
	if err != nil {
		return types.DoorAccessEvent{}, fmt.Errorf("FindDoorEvent: %w", err)
	}
	return ev, nil
}

func (s *Store) MarkDoorActuated(ctx context.Context, eventID int64) error {
	nowMs := s.now().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return markActuated(ctx, tx, s.dialect, eventID, nowMs)
	})
}

// markActuated flips door_actuated from 0 to 1. Zero affected rows means
// the event is missing or was already actuated.
func markActuated(ctx context.Context, tx *sql.Tx, d dbpkg.Dialect, eventID, nowMs int64) error {
	res, err := tx.ExecContext(ctx, d.Rebind(`
UPDATE door_access_events SET door_actuated = 1, actuated_at_ms = ?
WHERE id = ? AND door_actuated = 0;`), nowMs, eventID)
	if err != nil {
		return fmt.Errorf("markActuated update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("markActuated rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var actuated int
	err = tx.QueryRowContext(ctx, d.Rebind(`
SELECT door_actuated FROM door_access_events WHERE id = ?;`), eventID).Scan(&actuated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("markActuated check: %w", err)
	}
	return store.ErrAlreadyActuated
}

func (s *Store) AuthorizeDoor(ctx context.Context, tag string, emit store.EmitFunc) (types.DoorDecision, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	var decision types.DoorDecision

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		snap, err := s.doorSnapshot(ctx, tx, tag)
		if err != nil {
			return err
		}

		if reason := snap.Evaluate(); reason != "" {
			decision = snap.Decision(tag, reason, msToTime(nowMs))
			return nil
		}

		if err := markActuated(ctx, tx, s.dialect, snap.EventID, nowMs); err != nil {
			return fmt.Errorf("AuthorizeDoor: %w", err)
		}

		res, err := tx.ExecContext(ctx, s.q(`
UPDATE passengers SET state = ?, updated_at_ms = ? WHERE id = ? AND state = ?;`),
			string(types.StateComplete), nowMs, snap.PassengerID, string(types.StateBoarded))
		if err != nil {
			return fmt.Errorf("AuthorizeDoor complete: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("AuthorizeDoor complete: %w", store.ErrInvalidState)
		}

		if emit != nil {
			if err := emit(ctx); err != nil {
				return fmt.Errorf("AuthorizeDoor emit: %w", err)
			}
		}

		decision = snap.Decision(tag, types.DoorReasonAuthorized, msToTime(nowMs))
		return nil
	})
	if err != nil {
		return types.DoorDecision{}, err
	}
	return decision, nil
}

// doorSnapshot reads passenger and event in one query. On Postgres the
// rows stay locked until the transaction ends.
func (s *Store) doorSnapshot(ctx context.Context, tx *sql.Tx, tag string) (store.DoorSnapshot, error) {
	lock := ""
	if s.dialect == dbpkg.Postgres {
		lock = " FOR UPDATE OF p"
	}

	var (
		snap     store.DoorSnapshot
		state    string
		eventID  sql.NullInt64
		actuated sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, s.q(`
SELECT p.id, p.state, e.id, e.door_actuated
FROM passengers p
LEFT JOIN door_access_events e ON e.passenger_id = p.id
WHERE p.tag_code = ?`+lock+`;`), tag).Scan(&snap.PassengerID, &state, &eventID, &actuated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DoorSnapshot{}, nil
	}
	if err != nil {
		return store.DoorSnapshot{}, fmt.Errorf("AuthorizeDoor snapshot: %w", err)
	}

	snap.Found = true
	snap.State = types.PassengerState(state)
	snap.HasEvent = eventID.Valid
	snap.EventID = eventID.Int64
	snap.Actuated = actuated.Valid && actuated.Int64 == 1
	return snap, nil
}
