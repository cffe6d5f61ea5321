package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func enrolledPassenger(t *testing.T, k *kiosk, name, tag string) types.Passenger {
	t.Helper()
	ctx := context.Background()
	p, err := k.store.CreatePassenger(ctx, name, "AA123")
	if err != nil {
		t.Fatalf("CreatePassenger: %v", err)
	}
	k.camera.Enqueue(anaFace)
	if _, err := k.enroll.Enroll(ctx, p.ID, tag); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	return p
}

// ── ValidateTag ──────────────────────────────────────────────────────────────

func TestValidateTag(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p := enrolledPassenger(t, k, "ANA LOPEZ", "A1B2C3D4")

	sum, err := k.verify.ValidateTag(ctx, "a1b2c3d4")
	if err != nil {
		t.Fatalf("ValidateTag: %v", err)
	}
	if sum.ID != p.ID || sum.Flight != "AA123" || sum.State != types.StateValidated {
		t.Errorf("unexpected summary %+v", sum)
	}

	if _, err := k.verify.ValidateTag(ctx, "FFFFFFFF"); !errors.Is(err, service.ErrUnknownTag) {
		t.Errorf("expected ErrUnknownTag, got %v", err)
	}
}

func TestValidateTag_NoBiometric(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p, _ := k.store.CreatePassenger(ctx, "A", "AA123")
	_, _ = k.enroll.AssignTag(ctx, p.ID, "0000000A")

	if _, err := k.verify.ValidateTag(ctx, "0000000A"); !errors.Is(err, service.ErrNoBiometric) {
		t.Errorf("expected ErrNoBiometric, got %v", err)
	}
}

// ── VerifyFace ───────────────────────────────────────────────────────────────

func TestVerifyFace_DeniedLeavesStateAlone(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p := enrolledPassenger(t, k, "A", "A1B2C3D4")

	k.camera.Enqueue(strangerFace)
	res, err := k.verify.VerifyFace(ctx, p.ID)
	if err != nil {
		t.Fatalf("VerifyFace: %v", err)
	}
	if res.Granted || res.Similarity != 0 {
		t.Errorf("expected denial with 0 similarity, got %+v", res)
	}
	got, _ := k.store.FindPassengerByID(ctx, p.ID)
	if got.State != types.StateValidated {
		t.Errorf("expected VALIDATED, got %s", got.State)
	}
	if _, err := k.store.FindDoorEvent(ctx, p.ID); err == nil {
		t.Error("denied verification must not create a door event")
	}
}

func TestVerifyFace_CaptureFailure(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p := enrolledPassenger(t, k, "A", "A1B2C3D4")

	if _, err := k.verify.VerifyFace(ctx, p.ID); !errors.Is(err, service.ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	got, _ := k.store.FindPassengerByID(ctx, p.ID)
	if got.State != types.StateValidated {
		t.Errorf("expected VALIDATED, got %s", got.State)
	}
}

func TestVerifyFace_RetryIsIdempotent(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p := enrolledPassenger(t, k, "A", "A1B2C3D4")

	k.camera.Enqueue(anaLiveFace)
	res, err := k.verify.VerifyFace(ctx, p.ID)
	if err != nil || !res.Granted {
		t.Fatalf("VerifyFace: %+v %v", res, err)
	}
	first, err := k.store.FindDoorEvent(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindDoorEvent: %v", err)
	}

	k.camera.Enqueue(anaLiveFace)
	again, err := k.verify.VerifyFace(ctx, p.ID)
	if err != nil || !again.Granted {
		t.Fatalf("retry: %+v %v", again, err)
	}
	if again.Passenger.State != types.StateBoarded {
		t.Errorf("retry state: %s", again.Passenger.State)
	}
	second, err := k.store.FindDoorEvent(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindDoorEvent: %v", err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("retry replaced the boarding event: %+v -> %+v", first, second)
	}

	if _, err := k.verify.ValidateTag(ctx, "A1B2C3D4"); !errors.Is(err, service.ErrAlreadyBoarded) {
		t.Errorf("ValidateTag after boarding: expected ErrAlreadyBoarded, got %v", err)
	}
}

func TestVerifyFace_NotFound(t *testing.T) {
	k := newKiosk()
	if _, err := k.verify.VerifyFace(context.Background(), 77); !errors.Is(err, service.ErrPassengerNotFound) {
		t.Fatalf("expected ErrPassengerNotFound, got %v", err)
	}
}

// ── Full scenario ────────────────────────────────────────────────────────────

func TestScenario_AnaLopezBoardsOnce(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()

	sum, err := k.admin.CreatePassenger(ctx, "ANA LOPEZ", "AA123")
	if err != nil {
		t.Fatalf("CreatePassenger: %v", err)
	}

	k.camera.Enqueue(anaFace)
	if _, err := k.enroll.Enroll(ctx, sum.ID, "A1B2C3D4"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	if _, err := k.verify.ValidateTag(ctx, "A1B2C3D4"); err != nil {
		t.Fatalf("ValidateTag: %v", err)
	}

	k.camera.Enqueue(anaLiveFace)
	res, err := k.verify.VerifyFace(ctx, sum.ID)
	if err != nil || !res.Granted {
		t.Fatalf("VerifyFace: %+v %v", res, err)
	}
	if res.Similarity != 98 {
		t.Errorf("expected similarity 98, got %v", res.Similarity)
	}
	if res.Passenger.State != types.StateBoarded {
		t.Errorf("expected BOARDED, got %s", res.Passenger.State)
	}

	d := k.door.HandleTagPresented(ctx, "A1B2C3D4")
	if !d.Granted {
		t.Fatalf("expected door granted, got %+v", d)
	}
	d = k.door.HandleTagPresented(ctx, "A1B2C3D4")
	if d.Granted {
		t.Fatalf("expected replay denied, got %+v", d)
	}

	msgs := k.pub.Messages()
	want := []string{"door/response:ABRIR", "door/response:DENEGAR"}
	if len(msgs) != len(want) || msgs[0] != want[0] || msgs[1] != want[1] {
		t.Errorf("expected %v, got %v", want, msgs)
	}

	got, _ := k.store.FindPassengerByID(ctx, sum.ID)
	if got.State != types.StateComplete {
		t.Errorf("expected COMPLETE, got %s", got.State)
	}
}
