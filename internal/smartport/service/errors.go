package service

import (
	"errors"
	"fmt"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrPassengerNotFound = errors.New("passenger not found")
	ErrUnknownTag        = errors.New("tag not registered")
	ErrAlreadyBoarded    = errors.New("passenger already boarded")
	ErrNoBiometric       = errors.New("passenger has no enrolled face")
	ErrNoTagDetected     = errors.New("no tag detected")
	ErrNoFaceDetected    = errors.New("no face detected")
	ErrEnrollmentStore   = errors.New("could not store enrollment")
	ErrUnknownAdmin      = errors.New("administrator not registered")
)

// AlreadyBoardedError carries the passenger's current state. It matches
// ErrAlreadyBoarded with errors.Is.
type AlreadyBoardedError struct {
	State types.PassengerState
}

func (e *AlreadyBoardedError) Error() string {
	return fmt.Sprintf("%s (state %s)", ErrAlreadyBoarded, e.State)
}

func (e *AlreadyBoardedError) Is(target error) bool {
	return target == ErrAlreadyBoarded
}
