package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// Weights
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordWeight_KeepsParseErrorMarker(t *testing.T) {
	s := newTestStore(t, openTestDB(t))
	ctx := context.Background()

	r, err := s.RecordWeight(ctx, types.WeightReading{WeightKg: 0, ParseError: true, RawPayload: "abc"})
	if err != nil {
		t.Fatalf("RecordWeight: %v", err)
	}
	if r.ID == 0 || r.RecordedAt.IsZero() {
		t.Errorf("expected id and timestamp assigned, got %+v", r)
	}

	list, err := s.ListWeights(ctx, 10)
	if err != nil {
		t.Fatalf("ListWeights: %v", err)
	}
	if len(list) != 1 || !list[0].ParseError || list[0].RawPayload != "abc" || list[0].WeightKg != 0 {
		t.Errorf("unexpected readings %+v", list)
	}
}

func TestWeightStatsSince_AndPrune(t *testing.T) {
	s := newTestStore(t, openTestDB(t))
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, kg := range []float64{10, 24, 5} {
		if _, err := s.RecordWeight(ctx, types.WeightReading{WeightKg: kg, RecordedAt: day.Add(time.Duration(i+1) * time.Hour)}); err != nil {
			t.Fatalf("RecordWeight: %v", err)
		}
	}
	if _, err := s.RecordWeight(ctx, types.WeightReading{WeightKg: 99, RecordedAt: day.Add(-time.Hour)}); err != nil {
		t.Fatalf("RecordWeight old: %v", err)
	}

	st, err := s.WeightStatsSince(ctx, day, 23)
	if err != nil {
		t.Fatalf("WeightStatsSince: %v", err)
	}
	want := types.WeightStats{Total: 3, Average: 13, Max: 24, Min: 5, Overweights: 1}
	if st != want {
		t.Errorf("stats: expected %+v, got %+v", want, st)
	}

	list, _ := s.ListWeights(ctx, 2)
	if len(list) != 2 || list[0].WeightKg != 5 || list[1].WeightKg != 24 {
		t.Errorf("expected newest first, got %+v", list)
	}

	n, err := s.PruneWeightsOlderThan(ctx, day)
	if err != nil {
		t.Fatalf("PruneWeightsOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
}

func TestWeightStatsSince_Empty(t *testing.T) {
	s := newTestStore(t, openTestDB(t))

	st, err := s.WeightStatsSince(context.Background(), time.Now(), 23)
	if err != nil {
		t.Fatalf("WeightStatsSince: %v", err)
	}
	if st != (types.WeightStats{}) {
		t.Errorf("expected zero stats, got %+v", st)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Admins
// ═══════════════════════════════════════════════════════════════════════════

func TestAdmins_CreateFindList(t *testing.T) {
	s := newTestStore(t, openTestDB(t))
	ctx := context.Background()

	a, err := s.CreateAdmin(ctx, "jefe  turno", "00AABBCC")
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if a.Name != "JEFE TURNO" {
		t.Errorf("expected normalized name, got %q", a.Name)
	}
	if _, err := s.CreateAdmin(ctx, "other", "00AABBCC"); !errors.Is(err, store.ErrTagInUse) {
		t.Errorf("expected ErrTagInUse, got %v", err)
	}
	if _, err := s.CreateAdmin(ctx, "second", "00AABBCD"); err != nil {
		t.Fatalf("CreateAdmin second: %v", err)
	}

	got, err := s.FindAdminByTag(ctx, "00AABBCC")
	if err != nil || got.ID != a.ID {
		t.Errorf("FindAdminByTag: %+v %v", got, err)
	}
	if _, err := s.FindAdminByTag(ctx, "FFFFFFFF"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(list) != 2 || list[0].Name != "SECOND" {
		t.Errorf("expected newest first, got %+v", list)
	}
}
