package store

import (
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// DoorSnapshot is the joined passenger+event row a door decision is made on.
type DoorSnapshot struct {
	Found       bool
	PassengerID int64
	State       types.PassengerState
	HasEvent    bool
	EventID     int64
	Actuated    bool
}

// Evaluate applies the door checks in order: existence, prior biometric
// verification, BOARDED state, single use. It returns the deny reason, or
// "" when the door may open.
func (s DoorSnapshot) Evaluate() string {
	switch {
	case !s.Found:
		return types.DoorReasonUnknownTag
	case !s.HasEvent:
		return types.DoorReasonNotVerified
	case s.State != types.StateBoarded:
		return types.DoorReasonInvalidState
	case s.Actuated:
		return types.DoorReasonAlreadyActuated
	}
	return ""
}

// Decision builds the DoorDecision for this snapshot.
func (s DoorSnapshot) Decision(tag, reason string, at time.Time) types.DoorDecision {
	d := types.DoorDecision{
		Granted:     reason == types.DoorReasonAuthorized,
		Reason:      reason,
		TagCode:     tag,
		PassengerID: s.PassengerID,
		EventID:     s.EventID,
		State:       s.State,
		DecidedAt:   at,
	}
	if d.Granted {
		d.State = types.StateComplete
	}
	return d
}
