package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

const passengerColumns = `
  p.id, p.name, p.flight_number, f.destination, p.tag_code, p.embedding,
  p.state, p.created_at_ms, p.updated_at_ms
FROM passengers p
JOIN flights f ON f.number = p.flight_number`

func (s *Store) scanPassenger(row rowScanner) (types.Passenger, error) {
	var (
		p         types.Passenger
		tag       sql.NullString
		blob      []byte
		state     string
		createdMs int64
		updatedMs int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.FlightNumber, &p.Destination, &tag, &blob,
		&state, &createdMs, &updatedMs); err != nil {
		return types.Passenger{}, err
	}
	if tag.Valid {
		t := tag.String
		p.TagCode = &t
	}
	emb, err := s.codec.Decode(blob)
	if err != nil {
		return types.Passenger{}, fmt.Errorf("passenger %d embedding: %w", p.ID, err)
	}
	p.Embedding = emb
	p.State = types.PassengerState(state)
	p.CreatedAt = msToTime(createdMs)
	p.UpdatedAt = msToTime(updatedMs)
	return p, nil
}

func (s *Store) FindPassengerByTag(ctx context.Context, tag string) (types.Passenger, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT`+passengerColumns+` WHERE p.tag_code = ?;`), tag)
	p, err := s.scanPassenger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Passenger{}, store.ErrNotFound
	}
	if err != nil {
		return types.Passenger{}, fmt.Errorf("FindPassengerByTag: %w", err)
	}
	return p, nil
}

func (s *Store) FindPassengerByID(ctx context.Context, id int64) (types.Passenger, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT`+passengerColumns+` WHERE p.id = ?;`), id)
	p, err := s.scanPassenger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Passenger{}, store.ErrNotFound
	}
	if err != nil {
		return types.Passenger{}, fmt.Errorf("FindPassengerByID: %w", err)
	}
	return p, nil
}

func (s *Store) CreatePassenger(ctx context.Context, name, flightNumber string) (types.Passenger, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	p := types.Passenger{
		Name:         types.NormalizeName(name),
		FlightNumber: strings.ToUpper(strings.TrimSpace(flightNumber)),
		State:        types.StateRegistered,
		CreatedAt:    msToTime(nowMs),
		UpdatedAt:    msToTime(nowMs),
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureFlight(ctx, tx, s.dialect, p.FlightNumber); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, s.q(`
SELECT destination FROM flights WHERE number = ?;`), p.FlightNumber).Scan(&p.Destination); err != nil {
			return fmt.Errorf("CreatePassenger flight: %w", err)
		}
		if err := tx.QueryRowContext(ctx, s.q(`
INSERT INTO passengers(name, flight_number, state, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
RETURNING id;`), p.Name, p.FlightNumber, string(p.State), nowMs, nowMs).Scan(&p.ID); err != nil {
			return fmt.Errorf("CreatePassenger insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Passenger{}, err
	}
	return p, nil
}

// ensureFlight creates the flight with the default destination if it does
// not exist yet. Must be called inside an existing transaction.
func ensureFlight(ctx context.Context, tx *sql.Tx, d dbpkg.Dialect, number string) error {
	if _, err := tx.ExecContext(ctx, d.Rebind(`
INSERT INTO flights(number, destination) VALUES (?, ?)
ON CONFLICT(number) DO NOTHING;`), number, types.DefaultDestination); err != nil {
		return fmt.Errorf("ensureFlight %s: %w", number, err)
	}
	return nil
}

func (s *Store) FindFlight(ctx context.Context, number string) (types.Flight, error) {
	var (
		f         types.Flight
		departure sql.NullInt64
		gate      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.q(`
SELECT number, destination, departure_at_ms, gate FROM flights WHERE number = ?;`),
		strings.ToUpper(strings.TrimSpace(number)),
	).Scan(&f.Number, &f.Destination, &departure, &gate)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Flight{}, store.ErrNotFound
	}
	if err != nil {
		return types.Flight{}, fmt.Errorf("FindFlight: %w", err)
	}
	f.DepartureAt = nullMsToTime(departure)
	if gate.Valid {
		g := gate.String
		f.Gate = &g
	}
	return f, nil
}

// lockPassenger reads the passenger's state and tag inside tx, row-locked
// on Postgres.
func (s *Store) lockPassenger(ctx context.Context, tx *sql.Tx, id int64) (types.PassengerState, sql.NullString, error) {
	var (
		state string
		tag   sql.NullString
	)
	err := tx.QueryRowContext(ctx, s.q(`
SELECT state, tag_code FROM passengers WHERE id = ?`+s.dialect.ForUpdate()+`;`), id).Scan(&state, &tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", tag, store.ErrNotFound
	}
	if err != nil {
		return "", tag, fmt.Errorf("lock passenger %d: %w", id, err)
	}
	return types.PassengerState(state), tag, nil
}

func (s *Store) SetPassengerTag(ctx context.Context, id int64, tag string) error {
	nowMs := s.now().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		state, _, err := s.lockPassenger(ctx, tx, id)
		if err != nil {
			return err
		}

		var holder int64
		err = tx.QueryRowContext(ctx, s.q(`
SELECT id FROM passengers WHERE tag_code = ? AND id <> ?;`), tag, id).Scan(&holder)
		switch {
		case err == nil:
			return store.ErrTagInUse
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("SetPassengerTag holder: %w", err)
		}

		if state != types.StateRegistered && state != types.StateEnrolledTag {
			return store.ErrInvalidState
		}

		if _, err := tx.ExecContext(ctx, s.q(`
UPDATE passengers SET tag_code = ?, state = ?, updated_at_ms = ? WHERE id = ?;`),
			tag, string(types.StateEnrolledTag), nowMs, id,
		); err != nil {
			if dbpkg.IsUniqueViolation(err) {
				return store.ErrTagInUse
			}
			return fmt.Errorf("SetPassengerTag update: %w", err)
		}
		return nil
	})
}

func (s *Store) SetPassengerEmbedding(ctx context.Context, id int64, emb types.Embedding) error {
	blob, err := s.codec.Encode(emb)
	if err != nil {
		return fmt.Errorf("SetPassengerEmbedding: %w", err)
	}
	nowMs := s.now().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		state, tag, err := s.lockPassenger(ctx, tx, id)
		if err != nil {
			return err
		}
		if !tag.Valid || tag.String == "" {
			return store.ErrInvalidState
		}
		if state != types.StateEnrolledTag && state != types.StateValidated {
			return store.ErrInvalidState
		}

		// Embedding and state change land in the same statement.
		if _, err := tx.ExecContext(ctx, s.q(`
UPDATE passengers SET embedding = ?, state = ?, updated_at_ms = ? WHERE id = ?;`),
			blob, string(types.StateValidated), nowMs, id,
		); err != nil {
			return fmt.Errorf("SetPassengerEmbedding update: %w", err)
		}
		return nil
	})
}

func (s *Store) ClearPassengerTag(ctx context.Context, id int64) error {
	nowMs := s.now().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		state, _, err := s.lockPassenger(ctx, tx, id)
		if err != nil {
			return err
		}
		if state != types.StateRegistered && state != types.StateEnrolledTag {
			return store.ErrInvalidState
		}
		if _, err := tx.ExecContext(ctx, s.q(`
UPDATE passengers SET tag_code = NULL, state = ?, updated_at_ms = ? WHERE id = ?;`),
			string(types.StateRegistered), nowMs, id,
		); err != nil {
			return fmt.Errorf("ClearPassengerTag update: %w", err)
		}
		return nil
	})
}
