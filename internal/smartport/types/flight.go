package types

import "time"

// DefaultDestination is used when a flight is created lazily from a
// passenger registration that did not name one.
const DefaultDestination = "DESTINO"

type Flight struct {
	Number      string
	Destination string
	DepartureAt *time.Time
	Gate        *string
}
