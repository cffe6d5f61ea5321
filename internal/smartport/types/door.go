package types

import "time"

// DoorAccessEvent is created once a passenger passes biometric
// verification. DoorActuated flips to true exactly once, when the
// physical gate opens for that passenger.
type DoorAccessEvent struct {
	ID           int64
	PassengerID  int64
	Similarity   float64
	DoorActuated bool
	CreatedAt    time.Time
	ActuatedAt   *time.Time
}

// Door decision reasons. Granted decisions use DoorReasonAuthorized.
const (
	DoorReasonAuthorized      = "authorized"
	DoorReasonUnknownTag      = "unknown_tag"
	DoorReasonNotVerified     = "not_verified"
	DoorReasonInvalidState    = "invalid_state"
	DoorReasonAlreadyActuated = "already_actuated"
	DoorReasonInternalError   = "internal_error"
)

type DoorDecision struct {
	Granted     bool
	Reason      string
	TagCode     string
	PassengerID int64
	EventID     int64
	State       PassengerState
	DecidedAt   time.Time
}
