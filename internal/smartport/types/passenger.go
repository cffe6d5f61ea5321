package types

import "time"

// PassengerState is the boarding lifecycle of a passenger.
//
//	REGISTERED -> ENROLLED_TAG -> VALIDATED -> BOARDED -> COMPLETE
type PassengerState string

const (
	StateRegistered  PassengerState = "REGISTERED"
	StateEnrolledTag PassengerState = "ENROLLED_TAG"
	StateValidated   PassengerState = "VALIDATED"
	StateBoarded     PassengerState = "BOARDED"
	StateComplete    PassengerState = "COMPLETE"
)

func (s PassengerState) Valid() bool {
	switch s {
	case StateRegistered, StateEnrolledTag, StateValidated, StateBoarded, StateComplete:
		return true
	}
	return false
}

// PastBoarding reports whether the passenger already used their boarding.
func (s PassengerState) PastBoarding() bool {
	return s == StateBoarded || s == StateComplete
}

type Passenger struct {
	ID           int64
	Name         string
	FlightNumber string
	Destination  string
	TagCode      *string
	Embedding    Embedding
	State        PassengerState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p Passenger) HasTag() bool { return p.TagCode != nil && *p.TagCode != "" }

func (p Passenger) HasEmbedding() bool { return len(p.Embedding) > 0 }

// PassengerSummary is the public view returned by the kiosk flows.
type PassengerSummary struct {
	ID          int64          `json:"id_pasajero"`
	Name        string         `json:"nombre"`
	Flight      string         `json:"vuelo"`
	Destination string         `json:"destino"`
	State       PassengerState `json:"estado"`
}

func (p Passenger) Summary() PassengerSummary {
	return PassengerSummary{
		ID:          p.ID,
		Name:        p.Name,
		Flight:      p.FlightNumber,
		Destination: p.Destination,
		State:       p.State,
	}
}
