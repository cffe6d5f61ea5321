package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// Store is an in-memory IdentityStore. A single mutex stands in for the
// database transaction: every method is atomic with respect to the others.
// It is intended for tests and dev runs without a database file.
type Store struct {
	mu sync.Mutex

	now func() time.Time

	nextPassenger int64
	nextEvent     int64
	nextWeight    int64
	nextAdmin     int64

	passengers map[int64]types.Passenger
	tags       map[string]int64
	flights    map[string]types.Flight
	events     map[int64]types.DoorAccessEvent // by passenger id
	weights    []types.WeightReading
	admins     []types.Admin
}

var _ store.IdentityStore = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		passengers: make(map[int64]types.Passenger),
		tags:       make(map[string]int64),
		flights:    make(map[string]types.Flight),
		events:     make(map[int64]types.DoorAccessEvent),
	}
}

// SetClock replaces the time source. Test-only helper.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// ── Passengers ───────────────────────────────────────────────────────────────

func (s *Store) FindPassengerByTag(_ context.Context, tag string) (types.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tags[tag]
	if !ok {
		return types.Passenger{}, store.ErrNotFound
	}
	return s.copyPassenger(id), nil
}

func (s *Store) FindPassengerByID(_ context.Context, id int64) (types.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passengers[id]; !ok {
		return types.Passenger{}, store.ErrNotFound
	}
	return s.copyPassenger(id), nil
}

func (s *Store) CreatePassenger(_ context.Context, name, flightNumber string) (types.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flightNumber = strings.ToUpper(strings.TrimSpace(flightNumber))
	f, ok := s.flights[flightNumber]
	if !ok {
		f = types.Flight{Number: flightNumber, Destination: types.DefaultDestination}
		s.flights[flightNumber] = f
	}

	s.nextPassenger++
	now := s.now()
	p := types.Passenger{
		ID:           s.nextPassenger,
		Name:         types.NormalizeName(name),
		FlightNumber: f.Number,
		Destination:  f.Destination,
		State:        types.StateRegistered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.passengers[p.ID] = p
	return p, nil
}

func (s *Store) FindFlight(_ context.Context, number string) (types.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[strings.ToUpper(strings.TrimSpace(number))]
	if !ok {
		return types.Flight{}, store.ErrNotFound
	}
	return f, nil
}

// AddFlight registers a flight with full details. Test/dev helper.
func (s *Store) AddFlight(f types.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights[f.Number] = f
}

func (s *Store) SetPassengerTag(_ context.Context, id int64, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passengers[id]
	if !ok {
		return store.ErrNotFound
	}
	if holder, taken := s.tags[tag]; taken && holder != id {
		return store.ErrTagInUse
	}
	if p.State != types.StateRegistered && p.State != types.StateEnrolledTag {
		return store.ErrInvalidState
	}

	if p.TagCode != nil {
		delete(s.tags, *p.TagCode)
	}
	t := tag
	p.TagCode = &t
	p.State = types.StateEnrolledTag
	p.UpdatedAt = s.now()
	s.passengers[id] = p
	s.tags[tag] = id
	return nil
}

func (s *Store) SetPassengerEmbedding(_ context.Context, id int64, emb types.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passengers[id]
	if !ok {
		return store.ErrNotFound
	}
	if !p.HasTag() {
		return store.ErrInvalidState
	}
	if p.State != types.StateEnrolledTag && p.State != types.StateValidated {
		return store.ErrInvalidState
	}
	p.Embedding = append(types.Embedding(nil), emb...)
	p.State = types.StateValidated
	p.UpdatedAt = s.now()
	s.passengers[id] = p
	return nil
}

func (s *Store) ClearPassengerTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passengers[id]
	if !ok {
		return store.ErrNotFound
	}
	switch p.State {
	case types.StateRegistered, types.StateEnrolledTag:
	default:
		return store.ErrInvalidState
	}
	if p.TagCode != nil {
		delete(s.tags, *p.TagCode)
	}
	p.TagCode = nil
	p.State = types.StateRegistered
	p.UpdatedAt = s.now()
	s.passengers[id] = p
	return nil
}

func (s *Store) copyPassenger(id int64) types.Passenger {
	p := s.passengers[id]
	if p.TagCode != nil {
		t := *p.TagCode
		p.TagCode = &t
	}
	p.Embedding = append(types.Embedding(nil), p.Embedding...)
	if len(p.Embedding) == 0 {
		p.Embedding = nil
	}
	return p
}

// ── Door events ──────────────────────────────────────────────────────────────

func (s *Store) RecordBoardingEvent(_ context.Context, passengerID int64, similarity float64) (types.DoorAccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.passengers[passengerID]
	if !ok {
		return types.DoorAccessEvent{}, store.ErrNotFound
	}
	if ev, exists := s.events[passengerID]; exists {
		return ev, nil
	}
	if !p.HasEmbedding() || (p.State != types.StateRegistered && p.State != types.StateValidated) {
		return types.DoorAccessEvent{}, store.ErrInvalidState
	}

	s.nextEvent++
	now := s.now()
	ev := types.DoorAccessEvent{
		ID:          s.nextEvent,
		PassengerID: passengerID,
		Similarity:  similarity,
		CreatedAt:   now,
	}
	s.events[passengerID] = ev
	p.State = types.StateBoarded
	p.UpdatedAt = now
	s.passengers[passengerID] = p
	return ev, nil
}

func (s *Store) FindDoorEvent(_ context.Context, passengerID int64) (types.DoorAccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[passengerID]
	if !ok {
		return types.DoorAccessEvent{}, store.ErrNotFound
	}
	return ev, nil
}

func (s *Store) MarkDoorActuated(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, ev := range s.events {
		if ev.ID != eventID {
			continue
		}
		if ev.DoorActuated {
			return store.ErrAlreadyActuated
		}
		now := s.now()
		ev.DoorActuated = true
		ev.ActuatedAt = &now
		s.events[pid] = ev
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) AuthorizeDoor(ctx context.Context, tag string, emit store.EmitFunc) (types.DoorDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := store.DoorSnapshot{}
	if id, ok := s.tags[tag]; ok {
		p := s.passengers[id]
		snap.Found = true
		snap.PassengerID = id
		snap.State = p.State
		if ev, ok := s.events[id]; ok {
			snap.HasEvent = true
			snap.EventID = ev.ID
			snap.Actuated = ev.DoorActuated
		}
	}

	if reason := snap.Evaluate(); reason != "" {
		return snap.Decision(tag, reason, now), nil
	}

	// Stage the mutation; it only becomes visible if emit succeeds.
	ev := s.events[snap.PassengerID]
	ev.DoorActuated = true
	ev.ActuatedAt = &now
	p := s.passengers[snap.PassengerID]
	p.State = types.StateComplete
	p.UpdatedAt = now

	if emit != nil {
		if err := emit(ctx); err != nil {
			return types.DoorDecision{}, err
		}
	}

	s.events[snap.PassengerID] = ev
	s.passengers[snap.PassengerID] = p
	return snap.Decision(tag, types.DoorReasonAuthorized, now), nil
}

// ── Weights ──────────────────────────────────────────────────────────────────

func (s *Store) RecordWeight(_ context.Context, r types.WeightReading) (types.WeightReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWeight++
	r.ID = s.nextWeight
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now()
	}
	s.weights = append(s.weights, r)
	return r, nil
}

// Weights returns a copy of all recorded readings. Test-only helper.
func (s *Store) Weights() []types.WeightReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.WeightReading, len(s.weights))
	copy(out, s.weights)
	return out
}

func (s *Store) ListWeights(_ context.Context, limit int) ([]types.WeightReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.WeightReading, len(s.weights))
	copy(out, s.weights)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) WeightStatsSince(_ context.Context, since time.Time, overweightKg float64) (types.WeightStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st types.WeightStats
	var sum float64
	for _, w := range s.weights {
		if w.RecordedAt.Before(since) {
			continue
		}
		if st.Total == 0 || w.WeightKg > st.Max {
			st.Max = w.WeightKg
		}
		if st.Total == 0 || w.WeightKg < st.Min {
			st.Min = w.WeightKg
		}
		if w.WeightKg > overweightKg {
			st.Overweights++
		}
		sum += w.WeightKg
		st.Total++
	}
	if st.Total > 0 {
		st.Average = sum / float64(st.Total)
	}
	return st, nil
}

func (s *Store) PruneWeightsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.weights[:0]
	var deleted int64
	for _, w := range s.weights {
		if w.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	s.weights = kept
	return deleted, nil
}

// ── Admins ───────────────────────────────────────────────────────────────────

func (s *Store) CreateAdmin(_ context.Context, name, tag string) (types.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.TagCode == tag {
			return types.Admin{}, store.ErrTagInUse
		}
	}
	s.nextAdmin++
	a := types.Admin{
		ID:        s.nextAdmin,
		TagCode:   tag,
		Name:      types.NormalizeName(name),
		CreatedAt: s.now(),
	}
	s.admins = append(s.admins, a)
	return a, nil
}

func (s *Store) FindAdminByTag(_ context.Context, tag string) (types.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.TagCode == tag {
			return a, nil
		}
	}
	return types.Admin{}, store.ErrNotFound
}

func (s *Store) ListAdmins(_ context.Context) ([]types.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Admin, len(s.admins))
	for i, a := range s.admins {
		out[len(out)-1-i] = a
	}
	return out, nil
}
