// Package device wraps the kiosk's physical peripherals: the RFID tag
// reader and the face-embedding camera. Both are single-user devices, so
// callers go through the Exclusive wrappers which serialize access and
// bound how long anyone waits.
package device

import (
	"context"
	"errors"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

var (
	ErrTimeout = errors.New("device: read timed out")
	ErrBusy    = errors.New("device: busy")
	ErrNoFace  = errors.New("device: no face detected")
	ErrClosed  = errors.New("device: closed")
)

// TagReader blocks until a tag is presented or ctx ends. The returned code
// is normalized (see types.NormalizeTagCode).
type TagReader interface {
	ReadTag(ctx context.Context) (string, error)
}

// FaceCapturer takes one capture attempt. ErrNoFace means the frame held no
// usable face and the caller may try again.
type FaceCapturer interface {
	Capture(ctx context.Context) (types.Embedding, error)
}

// Status is a best-effort availability report for the health endpoint.
type Status interface {
	Available() bool
}
