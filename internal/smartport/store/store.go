package store

import (
	"context"
	"errors"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTagInUse        = errors.New("tag code already assigned")
	ErrInvalidState    = errors.New("operation not allowed in current passenger state")
	ErrAlreadyActuated = errors.New("door already actuated for this event")
)

// EmitFunc is called by AuthorizeDoor after the door mutation has been
// applied but before it is committed. A non-nil error rolls the mutation back.
type EmitFunc func(ctx context.Context) error

// IdentityStore owns admins, flights, passengers, door access events and
// weight readings. Every method runs in its own short transaction; on
// failure nothing is left half-applied.
type IdentityStore interface {
	PassengerStore
	DoorStore
	WeightStore
	AdminStore
}

type PassengerStore interface {
	FindPassengerByTag(ctx context.Context, tag string) (types.Passenger, error)
	FindPassengerByID(ctx context.Context, id int64) (types.Passenger, error)
	// CreatePassenger creates the flight on first reference.
	CreatePassenger(ctx context.Context, name, flightNumber string) (types.Passenger, error)
	FindFlight(ctx context.Context, number string) (types.Flight, error)

	// SetPassengerTag fails with ErrTagInUse when another passenger holds
	// the tag, and with ErrInvalidState once the passenger is validated.
	SetPassengerTag(ctx context.Context, id int64, tag string) error
	// SetPassengerEmbedding stores the embedding and moves the passenger to
	// VALIDATED in the same write. The tag must already be set.
	SetPassengerEmbedding(ctx context.Context, id int64, emb types.Embedding) error
	// ClearPassengerTag undoes SetPassengerTag. Idempotent.
	ClearPassengerTag(ctx context.Context, id int64) error
}

type DoorStore interface {
	// RecordBoardingEvent creates the passenger's door access event and moves
	// them to BOARDED. A second call returns the existing event unchanged.
	RecordBoardingEvent(ctx context.Context, passengerID int64, similarity float64) (types.DoorAccessEvent, error)
	FindDoorEvent(ctx context.Context, passengerID int64) (types.DoorAccessEvent, error)
	MarkDoorActuated(ctx context.Context, eventID int64) error
	// AuthorizeDoor evaluates a presented tag against one consistent snapshot
	// of passenger and event, and when every check passes marks the event
	// actuated, completes the passenger and calls emit before committing.
	AuthorizeDoor(ctx context.Context, tag string, emit EmitFunc) (types.DoorDecision, error)
}

type WeightStore interface {
	RecordWeight(ctx context.Context, r types.WeightReading) (types.WeightReading, error)
	ListWeights(ctx context.Context, limit int) ([]types.WeightReading, error)
	WeightStatsSince(ctx context.Context, since time.Time, overweightKg float64) (types.WeightStats, error)
	PruneWeightsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, name, tag string) (types.Admin, error)
	FindAdminByTag(ctx context.Context, tag string) (types.Admin, error)
	ListAdmins(ctx context.Context) ([]types.Admin, error)
}

// Ping is implemented by stores backed by a connection that can go away.
type Pinger interface {
	Ping(ctx context.Context) error
}
