package service_test

import (
	"context"
	"testing"

	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/store/memory"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// panickingDoorStore blows up inside AuthorizeDoor.
type panickingDoorStore struct {
	*memory.Store
}

func (panickingDoorStore) AuthorizeDoor(context.Context, string, store.EmitFunc) (types.DoorDecision, error) {
	panic("corrupt row")
}

func boardPassenger(t *testing.T, k *kiosk, tag string) types.Passenger {
	t.Helper()
	p := enrolledPassenger(t, k, "A", tag)
	k.camera.Enqueue(anaLiveFace)
	if res, err := k.verify.VerifyFace(context.Background(), p.ID); err != nil || !res.Granted {
		t.Fatalf("VerifyFace: %+v %v", res, err)
	}
	return p
}

func TestDoor_DenyReasons(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	enrolledPassenger(t, k, "A", "0000000A")

	cases := map[string]string{
		"":         types.DoorReasonUnknownTag,
		"FFFFFFFF": types.DoorReasonUnknownTag,
		"0000000A": types.DoorReasonNotVerified,
	}
	for tag, reason := range cases {
		d := k.door.HandleTagPresented(ctx, tag)
		if d.Granted || d.Reason != reason {
			t.Errorf("tag %q: expected deny %s, got %+v", tag, reason, d)
		}
	}
	for _, m := range k.pub.Messages() {
		if m != "door/response:DENEGAR" {
			t.Errorf("unexpected publish %q", m)
		}
	}
}

func TestDoor_PublishFailureRollsBackAndDenies(t *testing.T) {
	k := newKiosk()
	ctx := context.Background()
	p := boardPassenger(t, k, "A1B2C3D4")

	k.pub.failOn = "ABRIR"
	d := k.door.HandleTagPresented(ctx, "A1B2C3D4")
	if d.Granted || d.Reason != types.DoorReasonInternalError {
		t.Fatalf("expected internal_error deny, got %+v", d)
	}
	got, _ := k.store.FindPassengerByID(ctx, p.ID)
	if got.State != types.StateBoarded {
		t.Errorf("expected BOARDED after failed publish, got %s", got.State)
	}
	if msgs := k.pub.Messages(); len(msgs) != 1 || msgs[0] != "door/response:DENEGAR" {
		t.Errorf("expected a single deny, got %v", msgs)
	}

	// Broker back: the same tag now opens the door.
	k.pub.failOn = ""
	if d := k.door.HandleTagPresented(ctx, "A1B2C3D4"); !d.Granted {
		t.Errorf("expected grant after recovery, got %+v", d)
	}
}

func TestDoor_PanicBecomesDeny(t *testing.T) {
	k := newKiosk()
	door := service.NewDoorService(panickingDoorStore{k.store}, k.pub, service.DoorConfig{
		ResponseTopic: "gate/1",
		DenyPayload:   "NO",
	}, silentLogger())

	d := door.HandleTagPresented(context.Background(), "A1B2C3D4")
	if d.Granted || d.Reason != types.DoorReasonInternalError {
		t.Fatalf("expected internal_error deny, got %+v", d)
	}
	if msgs := k.pub.Messages(); len(msgs) != 1 || msgs[0] != "gate/1:NO" {
		t.Errorf("expected deny on custom topic, got %v", msgs)
	}
}
