package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// VerifyResult is the outcome of a face check. Denied is a normal result,
// not an error.
type VerifyResult struct {
	Granted    bool
	Similarity float64
	Passenger  types.PassengerSummary
}

// VerificationService runs the two kiosk checks: tag lookup, then a live
// face against the enrolled embedding.
type VerificationService struct {
	store   store.IdentityStore
	reader  device.TagReader
	camera  device.FaceCapturer
	matcher *Matcher
	logger  *log.Logger
}

func NewVerificationService(
	s store.IdentityStore,
	reader device.TagReader,
	camera device.FaceCapturer,
	matcher *Matcher,
	logger *log.Logger,
) *VerificationService {
	return &VerificationService{store: s, reader: reader, camera: camera, matcher: matcher, logger: logger}
}

// ValidateTag looks up the passenger holding tag (read from the reader when
// empty). It does not change any state.
func (s *VerificationService) ValidateTag(ctx context.Context, tag string) (types.PassengerSummary, error) {
	tag, err := resolveTag(ctx, s.reader, tag)
	if err != nil {
		return types.PassengerSummary{}, err
	}

	p, err := s.store.FindPassengerByTag(ctx, tag)
	if errors.Is(err, store.ErrNotFound) {
		return types.PassengerSummary{}, ErrUnknownTag
	}
	if err != nil {
		return types.PassengerSummary{}, fmt.Errorf("validate tag: %w", err)
	}

	if p.State.PastBoarding() {
		return types.PassengerSummary{}, &AlreadyBoardedError{State: p.State}
	}
	if !p.HasEmbedding() {
		return types.PassengerSummary{}, ErrNoBiometric
	}
	return p.Summary(), nil
}

// VerifyFace captures a live face and compares it with the passenger's
// enrolled embedding. A match records the boarding event; repeating a
// granted verification returns the event already on file.
func (s *VerificationService) VerifyFace(ctx context.Context, passengerID int64) (VerifyResult, error) {
	p, err := s.store.FindPassengerByID(ctx, passengerID)
	if errors.Is(err, store.ErrNotFound) {
		return VerifyResult{}, ErrPassengerNotFound
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify face: %w", err)
	}
	if !p.HasEmbedding() {
		return VerifyResult{}, ErrNoBiometric
	}

	live, err := s.camera.Capture(ctx)
	if err != nil {
		obs.Verifications.WithLabelValues("no_face").Inc()
		return VerifyResult{}, fmt.Errorf("%w: %w", ErrNoFaceDetected, err)
	}

	score, ok := s.matcher.Match(p.Embedding, live)
	obs.Similarity.Observe(score)

	if !ok {
		obs.Verifications.WithLabelValues("denied").Inc()
		s.logger.Printf("verify face passenger=%d denied similarity=%.2f", passengerID, score)
		return VerifyResult{Granted: false, Similarity: score, Passenger: p.Summary()}, nil
	}

	if _, err := s.store.RecordBoardingEvent(ctx, passengerID, score); err != nil {
		return VerifyResult{}, fmt.Errorf("record boarding: %w", err)
	}
	if !p.State.PastBoarding() {
		p.State = types.StateBoarded
	}

	obs.Verifications.WithLabelValues("granted").Inc()
	s.logger.Printf("verify face passenger=%d granted similarity=%.2f", passengerID, score)
	return VerifyResult{Granted: true, Similarity: score, Passenger: p.Summary()}, nil
}
