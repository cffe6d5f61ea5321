package ids

import (
	"testing"
	"time"
)

func TestNew_MonotonicAndTimed(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, b := NewAt(at), NewAt(at)
	if a >= b {
		t.Fatalf("expected %s < %s within the same millisecond", a, b)
	}
	got, ok := Time(a)
	if !ok || !got.Equal(at) {
		t.Fatalf("Time(%s) = %v, %v", a, got, ok)
	}
	if _, ok := Time("not-an-id"); ok {
		t.Fatal("expected parse failure")
	}
}
